package order

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/domain"
	"storefront/internal/migrate"
)

func testPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	return pool
}

func resetTables(ctx context.Context, t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(ctx, `TRUNCATE order_items, orders, variants, products, categories, users RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func seedUserAndVariant(ctx context.Context, t *testing.T, pool *pgxpool.Pool) (userID, variantID string) {
	t.Helper()
	if err := pool.QueryRow(ctx, `INSERT INTO users (email) VALUES ('t@example.com') RETURNING id::text`).Scan(&userID); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	err := pool.QueryRow(ctx, `
WITH cat AS (
    INSERT INTO categories (name) VALUES ('Apparel') RETURNING id
), prod AS (
    INSERT INTO products (category_id, name) SELECT id, 'Tee' FROM cat RETURNING id
)
INSERT INTO variants (product_id, size, stock, base_price_paise)
SELECT id, 'M', 10, 79900 FROM prod
RETURNING id::text
`).Scan(&variantID)
	if err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	return userID, variantID
}

func draftInput(userID, variantID string, expiresAt time.Time) CreateDraftInput {
	return CreateDraftInput{
		UserID: userID,
		Address: domain.Address{
			FullName: "T", Line1: "1 Main St", City: "Bengaluru",
			State: "Karnataka", Pincode: "560001", Phone: "9800000000",
		},
		PaymentMethod: domain.PaymentGateway,
		Amounts: DraftAmounts{
			SubtotalPaise:   79900,
			ShippingPaise:   3000,
			FinalPricePaise: 82900,
		},
		ExpiresAt: expiresAt,
		Items: []DraftItem{
			{VariantID: variantID, ProductName: "Tee", Size: "M", Quantity: 1, PriceAtPurchasePaise: 79900},
		},
	}
}

func TestPostgres_DraftLifecycle(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	resetTables(ctx, t, pool)

	userID, variantID := seedUserAndVariant(ctx, t, pool)
	repo := NewPostgres(pool)
	now := time.Now()

	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	draft, err := repo.CreateDraft(ctx, tx, draftInput(userID, variantID, now.Add(15*time.Minute)))
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	if draft.Status != domain.OrderDraft || len(draft.Items) != 1 {
		t.Fatalf("unexpected draft: %+v", draft)
	}

	found, err := repo.GetDraftForUpdate(ctx, tx, userID, now)
	if err != nil {
		t.Fatalf("GetDraftForUpdate: %v", err)
	}
	if found.ID != draft.ID {
		t.Fatalf("found wrong draft: %s", found.ID)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if err := repo.SetGatewayOrderID(ctx, draft.ID, "rzp_order_1"); err != nil {
		t.Fatalf("SetGatewayOrderID: %v", err)
	}

	tx, err = pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	locked, err := repo.GetByGatewayOrderIDForUpdate(ctx, tx, "rzp_order_1")
	if err != nil {
		t.Fatalf("GetByGatewayOrderIDForUpdate: %v", err)
	}
	if err := repo.Promote(ctx, tx, locked.ID, "pay_1"); err != nil {
		t.Fatalf("Promote: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := repo.GetForUser(ctx, userID, draft.OrderID)
	if err != nil {
		t.Fatalf("GetForUser: %v", err)
	}
	if got.Status != domain.OrderPending || got.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("not promoted: %+v", got)
	}
	if got.ExpiresAt != nil {
		t.Fatal("TTL not cleared on promotion")
	}
	if got.GatewayPaymentID == nil || *got.GatewayPaymentID != "pay_1" {
		t.Fatal("payment id not stamped")
	}
	if got.Items[0].Status != domain.ItemPending {
		t.Fatalf("item not promoted: %+v", got.Items[0])
	}

	// A second promotion finds no draft row to flip.
	tx, err = pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback(ctx)
	if err := repo.Promote(ctx, tx, draft.ID, "pay_2"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestPostgres_ExpiredDraftInvisibleAndSwept(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	resetTables(ctx, t, pool)

	userID, variantID := seedUserAndVariant(ctx, t, pool)
	repo := NewPostgres(pool)
	now := time.Now()

	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := repo.CreateDraft(ctx, tx, draftInput(userID, variantID, now.Add(-time.Minute))); err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}

	if _, err := repo.GetDraftForUpdate(ctx, tx, userID, now); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expired draft must be invisible, got %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	n, err := repo.SweepExpiredDrafts(ctx, now)
	if err != nil {
		t.Fatalf("SweepExpiredDrafts: %v", err)
	}
	if n != 1 {
		t.Fatalf("swept = %d, want 1", n)
	}
}
