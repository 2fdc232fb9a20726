package service

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/xxxsen/estate/internal/geocode"
	"github.com/xxxsen/estate/internal/model"
	appErr "github.com/xxxsen/estate/internal/pkg/errors"
	"github.com/xxxsen/estate/internal/repo"
)

type memUsers struct {
	mu    sync.Mutex
	items map[string]*model.User
}

func newMemUsers() *memUsers {
	return &memUsers{items: map[string]*model.User{}}
}

func (m *memUsers) Create(ctx context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.items {
		if u.Email == user.Email {
			return appErr.ErrConflict
		}
	}
	cp := *user
	m.items[user.ID] = &cp
	return nil
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.items {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (m *memUsers) GetByID(ctx context.Context, userID string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.items[userID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) UpdatePassword(ctx context.Context, userID, passwordHash string, mtime int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.items[userID]
	if !ok {
		return appErr.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.Mtime = mtime
	return nil
}

type memCodes struct {
	mu    sync.Mutex
	items []*model.EmailVerificationCode
}

func (m *memCodes) Create(ctx context.Context, code *model.EmailVerificationCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *code
	m.items = append(m.items, &cp)
	return nil
}

func (m *memCodes) LatestByEmail(ctx context.Context, email, purpose string) (*model.EmailVerificationCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *model.EmailVerificationCode
	for _, c := range m.items {
		if c.Email == email && c.Purpose == purpose && (latest == nil || c.Ctime >= latest.Ctime) {
			latest = c
		}
	}
	if latest == nil {
		return nil, appErr.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *memCodes) find(id string) *model.EmailVerificationCode {
	for _, c := range m.items {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (m *memCodes) MarkUsed(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.find(id)
	if c == nil || c.Used != 0 {
		return appErr.ErrNotFound
	}
	c.Used = 1
	return nil
}

func (m *memCodes) ReserveAttempt(ctx context.Context, id string, maxAttempts int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.find(id)
	if c == nil || c.Used != 0 || c.Attempts >= maxAttempts {
		return appErr.ErrTooMany
	}
	c.Attempts++
	return nil
}

func (m *memCodes) DeleteExpiredBefore(ctx context.Context, cutoff int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.items[:0]
	var n int64
	for _, c := range m.items {
		if c.ExpiresAt < cutoff {
			n++
			continue
		}
		kept = append(kept, c)
	}
	m.items = kept
	return n, nil
}

type memProperties struct {
	mu    sync.Mutex
	items map[string]*model.Property
}

func newMemProperties() *memProperties {
	return &memProperties{items: map[string]*model.Property{}}
}

func (m *memProperties) Create(ctx context.Context, p *model.Property) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.items[p.ID] = &cp
	return nil
}

func (m *memProperties) Update(ctx context.Context, p *model.Property) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.items[p.ID]
	if !ok || old.Status == model.PropertyStatusDeleted {
		return appErr.ErrNotFound
	}
	cp := *p
	cp.Images = nil
	m.items[p.ID] = &cp
	return nil
}

func (m *memProperties) UpdateStatus(ctx context.Context, id, status string, mtime int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok || p.Status == model.PropertyStatusDeleted {
		return appErr.ErrNotFound
	}
	p.Status = status
	p.Mtime = mtime
	return nil
}

func (m *memProperties) GetByID(ctx context.Context, id string) (*model.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok || p.Status == model.PropertyStatusDeleted {
		return nil, appErr.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProperties) match(p *model.Property, f repo.PropertyFilter) bool {
	status := f.Status
	if status == "" {
		status = model.PropertyStatusActive
	}
	switch {
	case p.Status != status:
		return false
	case f.OwnerID != "" && p.OwnerID != f.OwnerID:
		return false
	case f.City != "" && p.City != f.City:
		return false
	case f.ListingType != "" && p.ListingType != f.ListingType:
		return false
	case f.PropertyType != "" && p.PropertyType != f.PropertyType:
		return false
	case f.MinPrice > 0 && p.Price < f.MinPrice:
		return false
	case f.MaxPrice > 0 && p.Price > f.MaxPrice:
		return false
	case f.MinBedrooms > 0 && p.Bedrooms < f.MinBedrooms:
		return false
	case f.Query != "" && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(f.Query)):
		return false
	}
	return true
}

func (m *memProperties) filtered(f repo.PropertyFilter) []*model.Property {
	var out []*model.Property
	for _, p := range m.items {
		if m.match(p, f) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Ctime > out[j].Ctime || (out[i].Ctime == out[j].Ctime && out[i].ID < out[j].ID)
	})
	return out
}

func (m *memProperties) List(ctx context.Context, f repo.PropertyFilter) ([]*model.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.filtered(f)
	start := int(f.Offset)
	if start > len(out) {
		return nil, nil
	}
	out = out[start:]
	if f.Limit > 0 && len(out) > int(f.Limit) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memProperties) Count(ctx context.Context, f repo.PropertyFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.filtered(f))), nil
}

func (m *memProperties) ListNearest(ctx context.Context, box repo.BoundingBox, lat, lng float64, limit uint) ([]*model.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Property
	for _, p := range m.items {
		if p.Status != model.PropertyStatusActive || p.Geocoded != 1 {
			continue
		}
		if p.Latitude < box.MinLat || p.Latitude > box.MaxLat || p.Longitude < box.MinLng || p.Longitude > box.MaxLng {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	scale := math.Cos(lat * math.Pi / 180)
	planar := func(p *model.Property) float64 {
		dLat, dLng := p.Latitude-lat, (p.Longitude-lng)*scale
		return dLat*dLat + dLng*dLng
	}
	sort.Slice(out, func(i, j int) bool { return planar(out[i]) < planar(out[j]) })
	if limit > 0 && len(out) > int(limit) {
		out = out[:limit]
	}
	return out, nil
}

func (m *memProperties) ListUngeocoded(ctx context.Context, limit uint) ([]*model.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Property
	for _, p := range m.items {
		if p.Status != model.PropertyStatusActive || p.Geocoded != 0 {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ctime < out[j].Ctime })
	if limit > 0 && len(out) > int(limit) {
		out = out[:limit]
	}
	return out, nil
}

func (m *memProperties) SetCoordinates(ctx context.Context, id string, lat, lng float64, mtime int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok || p.Geocoded != 0 || p.Status != model.PropertyStatusActive {
		return appErr.ErrNotFound
	}
	p.Latitude, p.Longitude, p.Geocoded, p.Mtime = lat, lng, 1, mtime
	return nil
}

type memImages struct {
	mu    sync.Mutex
	items []*model.PropertyImage
}

func (m *memImages) Create(ctx context.Context, img *model.PropertyImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *img
	m.items = append(m.items, &cp)
	return nil
}

func (m *memImages) ListByProperties(ctx context.Context, ids []string) (map[string][]*model.PropertyImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := map[string][]*model.PropertyImage{}
	for _, img := range m.items {
		if want[img.PropertyID] {
			out[img.PropertyID] = append(out[img.PropertyID], img)
		}
	}
	return out, nil
}

func (m *memImages) CountByProperty(ctx context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, img := range m.items {
		if img.PropertyID == id {
			n++
		}
	}
	return n, nil
}

type captureSender struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

type sentMail struct {
	to, subject, body string
}

func (c *captureSender) Send(to, subject, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (c *captureSender) lastCode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return ""
	}
	body := c.sent[len(c.sent)-1].body
	idx := strings.Index(body, "code is ")
	if idx < 0 {
		return ""
	}
	return body[idx+len("code is ") : idx+len("code is ")+verificationCodeDigits]
}

type fakeGeocoder struct {
	loc    *geocode.Location
	err    error
	calls  []string
	before func(address string)
}

func (f *fakeGeocoder) Name() string { return "fake" }

func (f *fakeGeocoder) Geocode(ctx context.Context, address string) (*geocode.Location, error) {
	f.calls = append(f.calls, address)
	if f.before != nil {
		f.before(address)
	}
	if f.err != nil {
		return nil, f.err
	}
	loc := *f.loc
	return &loc, nil
}
