package books

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/marigoldlabs/keepsake/backend/internal/contributions"
	"github.com/marigoldlabs/keepsake/backend/internal/ids"
	"github.com/marigoldlabs/keepsake/backend/internal/publicid"
	storagememory "github.com/marigoldlabs/keepsake/backend/internal/storage/memory"
)

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&MemoryBook{}, &contributions.Contribution{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

// stepClock returns strictly increasing instants, one second apart.
func stepClock() func() time.Time {
	var ticks int64
	base := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		step := atomic.AddInt64(&ticks, 1)
		return base.Add(time.Duration(step) * time.Second)
	}
}

func newTestService(t *testing.T, db *gorm.DB, objects ObjectDeleter) *Service {
	t.Helper()
	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      stepClock(),
		IDProvider: ids.NewUUIDProvider(),
		PublicIDs:  publicid.NewGenerator(),
		Objects:    objects,
	})
	if err != nil {
		t.Fatalf("failed to build books service: %v", err)
	}
	return service
}

func newTestServiceWithGenerator(t *testing.T, db *gorm.DB, generator publicid.Generator) *Service {
	t.Helper()
	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      stepClock(),
		IDProvider: ids.NewUUIDProvider(),
		PublicIDs:  generator,
		Objects:    storagememory.NewStore(0),
	})
	if err != nil {
		t.Fatalf("failed to build books service: %v", err)
	}
	return service
}

// scriptedPairGenerator replays a fixed sequence of id pairs, repeating the
// last entry once the script runs out. Used to force insert collisions.
type scriptedPairGenerator struct {
	pairs [][2]string
	calls int
}

func (g *scriptedPairGenerator) NewPair() (string, string, error) {
	index := g.calls
	if index >= len(g.pairs) {
		index = len(g.pairs) - 1
	}
	g.calls++
	pair := g.pairs[index]
	return pair[0], pair[1], nil
}

func pagesFixture(photoCount int) []Page {
	photos := make([]Photo, 0, photoCount)
	for i := 0; i < photoCount; i++ {
		photos = append(photos, Photo{
			ID:  fmt.Sprintf("photo-%d", i),
			URL: fmt.Sprintf("/api/images/img-%d.jpg", i),
		})
	}
	return []Page{{ID: "page-1", Layout: LayoutFourGrid, Photos: photos}}
}
