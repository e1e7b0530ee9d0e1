package bot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/civicly/civicly/internal/campaign"
	"github.com/civicly/civicly/internal/contribution"
	"github.com/civicly/civicly/internal/identity"
	"github.com/civicly/civicly/internal/ledger"
	"github.com/civicly/civicly/internal/logging"
	"github.com/civicly/civicly/internal/payments"
	"github.com/civicly/civicly/internal/spending"
	"github.com/civicly/civicly/internal/wallet"
)

const phone = "+447700900123"

type env struct {
	app      *fiber.App
	store    ledger.Store
	wallets  *wallet.Manager
	userID   string
	campaign ledger.Campaign
}

func newEnv(t *testing.T) env {
	t.Helper()
	ctx := context.Background()
	logger := logging.Discard()
	store := ledger.NewInMemory()
	ids := identity.NewService(identity.NewMemoryRepository())
	user, err := ids.Register(ctx, identity.Credentials{Phone: phone, PIN: "1234"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	wallets := wallet.NewManager(store, ids, payments.SimulatedGateway{BaseURL: "https://civicly.test"}, nil, logger)
	c, err := campaign.NewService(store, logger).Create(ctx, campaign.CreateInput{IssueID: "issue-1", Title: "Playground", TargetPence: 10_000})
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}

	h := NewHandler(ids, wallets, contribution.NewService(store, nil, logger), spending.NewService(store), logger)
	app := fiber.New()
	app.Post("/bot/actions", h.Action)
	return env{app: app, store: store, wallets: wallets, userID: user.ID, campaign: c}
}

func (e env) do(t *testing.T, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/bot/actions", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := e.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestBotBalanceCreatesWallet(t *testing.T) {
	e := newEnv(t)
	status, body := e.do(t, `{"action":"balance","phone":"+44 7700 900123"}`)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(body["message"].(string), "£0.00") {
		t.Fatalf("unexpected message %v", body["message"])
	}
	if _, err := e.store.WalletByUser(context.Background(), e.userID); err != nil {
		t.Fatalf("expected wallet to exist: %v", err)
	}
}

func TestBotUnknownPhone(t *testing.T) {
	e := newEnv(t)
	if status, _ := e.do(t, `{"action":"balance","phone":"+447700900999"}`); status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}

func TestBotTopupCreditsWallet(t *testing.T) {
	e := newEnv(t)
	status, body := e.do(t, `{"action":"topup","phone":"`+phone+`","amount_pence":1500}`)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	tx := body["transaction"].(map[string]any)
	if tx["status"] != "completed" || tx["type"] != "topup" {
		t.Fatalf("expected a completed topup row, got %v", tx)
	}
	if body["wallet"].(map[string]any)["balance_pence"].(float64) != 1_500 {
		t.Fatalf("expected 1500 in the response, got %v", body["wallet"])
	}
	if !strings.Contains(body["message"].(string), "£15.00") {
		t.Fatalf("unexpected message %v", body["message"])
	}

	w, _ := e.store.WalletByUser(context.Background(), e.userID)
	if w.BalancePence != 1_500 || w.TotalLoadedPence != 1_500 {
		t.Fatalf("expected stored balance 1500, got %+v", w)
	}

	if status, _ := e.do(t, `{"action":"topup","phone":"`+phone+`","amount_pence":50}`); status != http.StatusBadRequest {
		t.Fatalf("expected 400 below minimum, got %d", status)
	}
}

func TestBotContributeMatchesWebContract(t *testing.T) {
	e := newEnv(t)
	if _, err := e.wallets.TopUp(context.Background(), e.userID, 1_000); err != nil {
		t.Fatalf("topup: %v", err)
	}

	status, body := e.do(t, `{"action":"contribute","phone":"`+phone+`","campaign_id":"`+e.campaign.ID+`","amount_pence":300}`)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body["wallet_balance_pence"].(float64) != 700 {
		t.Fatalf("expected balance 700, got %v", body["wallet_balance_pence"])
	}
	if body["campaign"].(map[string]any)["raised_pence"].(float64) != 300 {
		t.Fatalf("expected raised 300, got %v", body["campaign"])
	}

	if status, _ := e.do(t, `{"action":"contribute","phone":"`+phone+`","campaign_id":"`+e.campaign.ID+`","amount_pence":5000}`); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for insufficient funds, got %d", status)
	}

	status, body = e.do(t, `{"action":"summary","phone":"`+phone+`"}`)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	sum := body["summary"].(map[string]any)
	if sum["total_spent_pence"].(float64) != 300 || sum["issues_supported"].(float64) != 1 {
		t.Fatalf("unexpected summary %v", sum)
	}
}

func TestBotUnknownAction(t *testing.T) {
	e := newEnv(t)
	if status, _ := e.do(t, `{"action":"withdraw","phone":"`+phone+`"}`); status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
}
