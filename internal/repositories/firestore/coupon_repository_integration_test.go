//go:build integration

package firestore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	domain "github.com/harborstay/api/internal/domain"
	pconfig "github.com/harborstay/api/internal/platform/config"
	pfirestore "github.com/harborstay/api/internal/platform/firestore"
	"github.com/harborstay/api/internal/repositories"
)

const emulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"

func TestCouponRepositoryIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}

	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}

	ensureDockerDaemon(t)

	port := freePort(t)
	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	containerID := startFirestoreEmulator(t, port)
	t.Cleanup(func() { stopContainer(containerID) })

	waitForEndpoint(t, endpoint, 30*time.Second)

	cfg := pconfig.FirestoreConfig{
		ProjectID:    "coupon-test",
		EmulatorHost: endpoint,
	}

	provider := pfirestore.NewProvider(cfg)
	t.Cleanup(func() {
		_ = provider.Close(context.Background())
	})

	repo, err := NewCouponRepository(provider)
	if err != nil {
		t.Fatalf("new coupon repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Second)
	cap := int64(5)
	coupon := domain.Coupon{
		ID:             "01J0000000000000000000TEST",
		ProviderID:     "provider-1",
		Code:           "SUMMER10",
		Type:           domain.CouponTypePercentage,
		Amount:         10,
		MaxRedemptions: &cap,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := repo.Create(ctx, coupon); err != nil {
		t.Fatalf("create coupon: %v", err)
	}

	// Duplicate code for the same provider must conflict.
	dup := coupon
	dup.ID = "01J0000000000000000000DUPE"
	err = repo.Create(ctx, dup)
	var couponErr *repositories.CouponError
	if !errors.As(err, &couponErr) || couponErr.Code != repositories.CouponErrorDuplicateCode {
		t.Fatalf("expected duplicate code error, got %v", err)
	}

	found, err := repo.FindByCode(ctx, "provider-1", "summer10")
	if err != nil {
		t.Fatalf("find by code: %v", err)
	}
	if found.Code != "SUMMER10" || found.UsedCount != 0 {
		t.Fatalf("unexpected coupon: %+v", found)
	}

	// Concurrent redemptions must never exceed the cap.
	const workers = 12
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	exhausted := 0

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := repo.ApplyRedemption(ctx, coupon.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			var cerr *repositories.CouponError
			if errors.As(err, &cerr) && cerr.Code == repositories.CouponErrorExhausted {
				exhausted++
				return
			}
			t.Errorf("unexpected redemption error: %v", err)
		}()
	}
	wg.Wait()

	if succeeded != int(cap) {
		t.Fatalf("expected exactly %d successful redemptions, got %d (exhausted=%d)", cap, succeeded, exhausted)
	}

	final, err := repo.FindByID(ctx, coupon.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if final.UsedCount != cap {
		t.Fatalf("expected usedCount=%d, got %d", cap, final.UsedCount)
	}
	if final.IsActive {
		t.Fatal("coupon should be deactivated once the cap is reached")
	}

	coupons, err := repo.ListByProvider(ctx, "provider-1", repositories.CouponListFilter{IncludeInactive: true})
	if err != nil {
		t.Fatalf("list by provider: %v", err)
	}
	if len(coupons) != 1 {
		t.Fatalf("expected 1 coupon, got %d", len(coupons))
	}

	if err := repo.Delete(ctx, coupon.ID); err != nil {
		t.Fatalf("delete coupon: %v", err)
	}
	if _, err := repo.FindByID(ctx, coupon.ID); err == nil {
		t.Fatal("expected not found after delete")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	addr, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unable to allocate port: %v", err)
	}
	defer addr.Close()
	return addr.Addr().(*net.TCPAddr).Port
}

func startFirestoreEmulator(t *testing.T, port int) string {
	t.Helper()
	args := []string{
		"run", "-d", "--rm",
		"-p", fmt.Sprintf("%d:8080", port),
		emulatorImage,
		"gcloud", "beta", "emulators", "firestore", "start",
		"--host-port=0.0.0.0:8080",
		"--quiet",
	}

	cmd := exec.Command("docker", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to start firestore emulator: %v - %s", err, string(out))
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		t.Fatalf("docker returned empty container id")
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

func stopContainer(id string) {
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "docker", "stop", id)
	_ = cmd.Run()
}

func waitForEndpoint(t *testing.T, endpoint string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", endpoint, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		lastErr = err
		time.Sleep(250 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = errors.New("timeout waiting for endpoint")
	}
	t.Fatalf("emulator did not become ready: %v", lastErr)
}

func ensureDockerDaemon(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "docker", "info")
	if err := cmd.Run(); err != nil {
		t.Skip("docker daemon unavailable: " + err.Error())
	}
}
