package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/blueledger/mpesa-ingest-go/internal/domain"
	"github.com/blueledger/mpesa-ingest-go/internal/infra/resilience"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(
		srv.Client(),
		srv.URL,
		"test-api-key",
		"test-service-role-key",
		resilience.NewCircuitBreaker("supabase-test"),
		resilience.Config{MaxRetries: 0, InitialBackoff: time.Millisecond},
		zap.NewNop(),
	)
	return client, srv
}

func writeRows(t *testing.T, w http.ResponseWriter, rows any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rows); err != nil {
		t.Errorf("encode rows: %v", err)
	}
}

func TestGetOrCreateSource_CreatesWhenAbsent(t *testing.T) {
	var mu sync.Mutex
	var posted map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest/v1/sources", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "test-api-key" {
			t.Error("missing apikey header")
		}
		if r.Header.Get("Authorization") != "Bearer test-service-role-key" {
			t.Error("missing service role bearer")
		}
		writeRows(t, w, []sourceRow{})
	})
	mux.HandleFunc("POST /rest/v1/sources", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if err := json.NewDecoder(r.Body).Decode(&posted); err != nil {
			t.Errorf("decode insert payload: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		writeRows(t, w, []sourceRow{{
			ID:       posted["id"].(string),
			UserID:   posted["user_id"].(string),
			Name:     posted["name"].(string),
			Type:     posted["type"].(string),
			Currency: posted["currency"].(string),
		}})
	})

	client, _ := newTestClient(t, mux)

	source, err := client.GetOrCreateSource(context.Background(), "user-1", "M-Pesa")
	if err != nil {
		t.Fatalf("GetOrCreateSource: %v", err)
	}
	if source.Name != "M-Pesa" || source.Type != "mobile_money" || source.Currency != "KES" {
		t.Errorf("unexpected source %+v", source)
	}
	mu.Lock()
	defer mu.Unlock()
	if posted["id"] == "" {
		t.Error("expected a client-assigned id in the insert payload")
	}
}

func TestGetOrCreateSource_ConflictFallsBackToWinner(t *testing.T) {
	var getCalls int

	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest/v1/sources", func(w http.ResponseWriter, r *http.Request) {
		getCalls++
		if getCalls == 1 {
			// First lookup: not there yet.
			writeRows(t, w, []sourceRow{})
			return
		}
		// Re-fetch after the lost create race: the winner's record.
		writeRows(t, w, []sourceRow{{
			ID: "src-winner", UserID: "user-1", Name: "M-Pesa", Type: "mobile_money", Currency: "KES",
		}})
	})
	mux.HandleFunc("POST /rest/v1/sources", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"code":"23505","message":"duplicate key value violates unique constraint"}`))
	})

	client, _ := newTestClient(t, mux)

	source, err := client.GetOrCreateSource(context.Background(), "user-1", "M-Pesa")
	if err != nil {
		t.Fatalf("GetOrCreateSource: %v", err)
	}
	if source.ID != "src-winner" {
		t.Errorf("expected the winner's record, got %+v", source)
	}
	if getCalls != 2 {
		t.Errorf("expected 2 lookups (initial + re-fetch), got %d", getCalls)
	}
}

func TestGetOrCreateCategory_ConflictFallsBackToWinner(t *testing.T) {
	var getCalls int

	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest/v1/categories", func(w http.ResponseWriter, r *http.Request) {
		getCalls++
		if getCalls == 1 {
			writeRows(t, w, []categoryRow{})
			return
		}
		writeRows(t, w, []categoryRow{{
			ID: "cat-winner", UserID: "user-1", Name: "Uncategorized Income", Type: "income",
		}})
	})
	mux.HandleFunc("POST /rest/v1/categories", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	client, _ := newTestClient(t, mux)

	category, err := client.GetOrCreateCategory(context.Background(), "user-1", "Uncategorized Income", domain.Income)
	if err != nil {
		t.Fatalf("GetOrCreateCategory: %v", err)
	}
	if category.ID != "cat-winner" || category.Direction != domain.Income {
		t.Errorf("expected the winner's record, got %+v", category)
	}
}

func TestFindByReferenceCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest/v1/transactions", func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.RawQuery, "metadata-%3E%3EtransactionCode=eq.QGH7XYZ12") {
			writeRows(t, w, []transactionRow{})
			return
		}
		writeRows(t, w, []transactionRow{{
			ID:        "tx-1",
			UserID:    "user-1",
			Type:      "income",
			Amount:    decimal.RequireFromString("1500.00"),
			Currency:  "KES",
			Timestamp: "2024-03-14T14:05:00+03:00",
			Metadata:  domain.TransactionMetadata{RawSMS: "raw", ReferenceCode: "QGH7XYZ12"},
		}})
	})

	client, _ := newTestClient(t, mux)

	tx, err := client.FindByReferenceCode(context.Background(), "user-1", "QGH7XYZ12")
	if err != nil {
		t.Fatalf("FindByReferenceCode: %v", err)
	}
	if tx.ID != "tx-1" || tx.Metadata.ReferenceCode != "QGH7XYZ12" {
		t.Errorf("unexpected transaction %+v", tx)
	}
	if !tx.Amount.Equal(decimal.RequireFromString("1500.00")) {
		t.Errorf("unexpected amount %s", tx.Amount)
	}

	_, err = client.FindByReferenceCode(context.Background(), "user-1", "NOPE00000")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Errorf("expected ErrNotFound for an unknown code, got %v", err)
	}
}

func TestFindSimilar_FiltersByWindow(t *testing.T) {
	var query string

	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest/v1/transactions", func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		writeRows(t, w, []transactionRow{{ID: "tx-similar", UserID: "user-1", Type: "expense"}})
	})

	client, _ := newTestClient(t, mux)

	ts := time.Date(2024, time.March, 14, 14, 5, 0, 0, time.UTC)
	tx, err := client.FindSimilar(context.Background(), "user-1",
		decimal.RequireFromString("750.00"), "ACME STORES",
		ts.Add(-60*time.Second), ts.Add(60*time.Second))
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if tx.ID != "tx-similar" {
		t.Errorf("unexpected transaction %+v", tx)
	}

	for _, want := range []string{
		"amount=eq.750",
		"merchant=eq.ACME+STORES",
		"timestamp=gte.2024-03-14T14%3A04%3A00Z",
		"timestamp=lte.2024-03-14T14%3A06%3A00Z",
	} {
		if !strings.Contains(query, want) {
			t.Errorf("query missing %q: %s", want, query)
		}
	}
}

func TestCreateTransaction(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rest/v1/transactions", func(w http.ResponseWriter, r *http.Request) {
		var payload transactionRow
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode insert payload: %v", err)
		}
		if payload.ID == "" {
			t.Error("expected a client-assigned id")
		}
		if payload.Metadata.RawSMS == "" {
			t.Error("expected the raw body in metadata")
		}
		w.WriteHeader(http.StatusCreated)
		writeRows(t, w, []transactionRow{payload})
	})

	client, _ := newTestClient(t, mux)

	created, err := client.CreateTransaction(context.Background(), &domain.StoredTransaction{
		UserID:       "user-1",
		SourceID:     "src-1",
		CategoryID:   "cat-1",
		Direction:    domain.Income,
		Amount:       decimal.RequireFromString("1500.00"),
		Currency:     "KES",
		Description:  "Received from JANE DOE",
		Counterparty: "JANE DOE",
		Timestamp:    time.Date(2024, time.March, 14, 14, 5, 0, 0, time.UTC),
		Metadata:     domain.TransactionMetadata{RawSMS: "raw body", ReferenceCode: "QGH7XYZ12"},
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if created.ID == "" {
		t.Error("expected an id on the created transaction")
	}
	if !created.Amount.Equal(decimal.RequireFromString("1500.00")) {
		t.Errorf("unexpected amount %s", created.Amount)
	}
}
