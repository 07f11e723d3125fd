package controllers

import (
	"context"
	"net/http"

	"github.com/troopfundraiser/frclient/api/responses"
	"github.com/troopfundraiser/frclient/api/validators"
	"github.com/troopfundraiser/frclient/internal/leaderboard"
	"github.com/troopfundraiser/frclient/pkg/logger"
)

type leaderboardClient interface {
	Get(ctx context.Context) (*leaderboard.Board, error)
}

type leaderboardResponse struct {
	Entries []leaderboard.Entry `json:"entries"`
	Totals  leaderboard.Entry   `json:"totals"`
}

// Leaderboard answers GET /leaderboard?top=. Entries are ranked; top 0 returns everyone.
func Leaderboard(client leaderboardClient, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		top, err := validators.ParseQueryInt(r, "top", 0, 0, 1000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		board, err := client.Get(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, leaderboardResponse{Entries: board.Top(top), Totals: board.Totals()})
	}
}
