package httperr

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/civicly/civicly/internal/ledger"
)

// Status maps domain errors to the HTTP status both the session and bot call
// sites report.
func Status(err error) int {
	var storage *ledger.StorageError
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrCampaignNotActive),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidCampaign):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrCampaignNotFound),
		errors.Is(err, ledger.ErrWalletNotFound),
		errors.Is(err, ledger.ErrTransactionNotFound),
		errors.Is(err, ledger.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrTopupAlreadyCompleted):
		return http.StatusConflict
	case errors.As(err, &storage):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// From converts err into a fiber error carrying the mapped status. Storage
// and unknown faults are not echoed to clients.
func From(err error) error {
	status := Status(err)
	switch status {
	case http.StatusServiceUnavailable:
		return fiber.NewError(status, "ledger temporarily unavailable")
	case http.StatusInternalServerError:
		return fiber.NewError(status, "internal error")
	default:
		return fiber.NewError(status, err.Error())
	}
}
