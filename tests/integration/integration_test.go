//go:build integration

package integration

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	tc "github.com/testcontainers/testcontainers-go/modules/compose"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/kirana/internal/domain/cart"
	"github.com/xenking/kirana/internal/domain/product"
)

var (
	databaseURL string
	redisURL    string
)

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	dc, err := tc.NewDockerCompose("docker-compose.test.yml")
	if err != nil {
		log.Fatalf("compose init: %v", err)
	}

	err = dc.
		WaitForService("postgres", wait.ForLog("database system is ready to accept connections").WithOccurrence(2)).
		WaitForService("redis", wait.ForListeningPort("6379/tcp")).
		Up(ctx, tc.Wait(true))
	if err != nil {
		log.Fatalf("compose up: %v", err)
	}
	defer func() {
		if err := dc.Down(context.Background(), tc.RemoveOrphans(true)); err != nil {
			log.Printf("compose down: %v", err)
		}
	}()

	pgAddr, err := serviceAddr(ctx, dc, "postgres", "5432/tcp")
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	databaseURL = fmt.Sprintf("postgres://kirana:kirana@%s/kirana?sslmode=disable", pgAddr)

	redisAddr, err := serviceAddr(ctx, dc, "redis", "6379/tcp")
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	redisURL = fmt.Sprintf("redis://%s/0", redisAddr)

	log.Printf("postgres at %s, redis at %s", pgAddr, redisAddr)
	return m.Run()
}

func serviceAddr(ctx context.Context, dc *tc.DockerCompose, service, port string) (string, error) {
	c, err := dc.ServiceContainer(ctx, service)
	if err != nil {
		return "", fmt.Errorf("container: %w", err)
	}
	host, err := c.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("host: %w", err)
	}
	mapped, err := c.MappedPort(ctx, port)
	if err != nil {
		return "", fmt.Errorf("mapped port: %w", err)
	}
	return fmt.Sprintf("%s:%s", host, mapped.Port()), nil
}

func testProduct(id string, price int64) product.Product {
	return product.Product{
		ID:                id,
		Name:              "Product " + id,
		Price:             decimal.NewFromInt(price),
		Description:       "Fresh " + id,
		ImageURL:          "https://images.example/" + id + ".png",
		AvailableQuantity: 10,
	}
}

// exerciseStore runs the cart through a backend: restore, mutate, restore
// again and compare.
func exerciseStore(t *testing.T, backend cart.SnapshotStore, key string) {
	t.Helper()
	ctx := context.Background()

	first := cart.Restore(ctx, backend, key)
	if n := first.LineCount(); n != 0 {
		t.Fatalf("fresh cart has %d lines", n)
	}
	first.AddToCart(ctx, testProduct("rice", 60))
	first.AddToCart(ctx, testProduct("rice", 60))
	first.AddToCart(ctx, testProduct("dal", 45))

	second := cart.Restore(ctx, backend, key)
	if n := second.LineCount(); n != 2 {
		t.Fatalf("restored cart has %d lines, want 2", n)
	}
	if got := second.TotalPrice(); !got.Equal(decimal.NewFromInt(165)) {
		t.Errorf("restored total: got %s, want 165", got)
	}
	l, ok := second.LineFor("rice")
	if !ok || l.Quantity != 2 {
		t.Errorf("rice line: got %+v (ok=%v), want quantity 2", l, ok)
	}

	second.ClearCart(ctx)
	third := cart.Restore(ctx, backend, key)
	if n := third.LineCount(); n != 0 {
		t.Errorf("cleared cart restored with %d lines", n)
	}
}
