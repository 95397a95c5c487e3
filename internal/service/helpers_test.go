package service

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"gorm.io/gorm"

	"booknest/internal/cache"
	"booknest/internal/repository"
	"booknest/internal/testutil"
)

type fixture struct {
	db    *gorm.DB
	store repository.Store
	cache *cache.Client
	redis *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gormDB := testutil.NewDB(t)
	mr := miniredis.RunT(t)
	client := cache.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })
	return &fixture{
		db:    gormDB,
		store: repository.NewStore(gormDB),
		cache: client,
		redis: mr,
	}
}
