package ledgerclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/swiftlend/wallet-gateway/internal/domain"
)

func TestLookupAccount_DecodesOwner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/wallet/lookup/1234567890" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "test-key" {
			t.Errorf("missing api key header")
		}
		json.NewEncoder(w).Encode(domain.AccountLookupResult{Valid: true, OwnerName: "Jane Doe"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	got, err := client.LookupAccount(context.Background(), "1234567890")
	if err != nil {
		t.Fatalf("LookupAccount: %v", err)
	}
	if !got.Valid || got.OwnerName != "Jane Doe" {
		t.Fatalf("expected valid Jane Doe, got %+v", got)
	}
}

func TestLogin_RejectionMapsToRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "invalid email or password",
			"code":  domain.CodeInvalidCredentials,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	_, err := client.Login(context.Background(), domain.Credentials{Email: "x@y.z", Password: "nope"})

	var rerr *domain.RemoteError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if rerr.Code != domain.CodeInvalidCredentials || rerr.HTTPStatus != http.StatusUnauthorized {
		t.Fatalf("unexpected remote error %+v", rerr)
	}
}

func TestWithdraw_InsufficientFunds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["externalAccount"] != "9876543210" {
			t.Errorf("unexpected external account %v", body["externalAccount"])
		}
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "insufficient funds",
			"code":  domain.CodeInsufficientFunds,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	err := client.Withdraw(context.Background(), "p-1", 500, "9876543210")

	var rerr *domain.RemoteError
	if !errors.As(err, &rerr) || rerr.Code != domain.CodeInsufficientFunds {
		t.Fatalf("expected InsufficientFunds rejection, got %v", err)
	}
}

// A 200 reply carrying accepted:false is still a rejection; returning nil
// here would make the wallet workflow clear the draft and report success.
func TestWithdraw_NotAcceptedMapsToRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]bool{"accepted": false})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	err := client.Withdraw(context.Background(), "p-1", 500, "9876543210")

	var rerr *domain.RemoteError
	if !errors.As(err, &rerr) || rerr.Code != domain.CodeWithdrawalRejected {
		t.Fatalf("expected WithdrawalRejected for accepted:false, got %v", err)
	}
}

func TestDo_UnreachableServerIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // immediately unreachable

	client := NewClient(srv.URL, "")
	_, err := client.GetWallet(context.Background(), "p-1")

	var terr *domain.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestDo_MalformedErrorBodyIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("<html>gateway timeout</html>"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	_, err := client.ListLoanOffers(context.Background())

	var terr *domain.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError for undecodable error body, got %v", err)
	}
}

func TestApplyForLoan_NotAcceptedBecomesRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]bool{"accepted": false})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	err := client.ApplyForLoan(context.Background(), "p-1", "A", 500, "1234567890")

	var rerr *domain.RemoteError
	if !errors.As(err, &rerr) || rerr.Code != domain.CodeApplicationRejected {
		t.Fatalf("expected ApplicationRejected, got %v", err)
	}
}
