package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/discochess/coach"
	"github.com/discochess/coach/internal/profile"
)

// ProfileService is the coaching core the tools query and update.
type ProfileService interface {
	Profile(ctx context.Context) (*coach.Snapshot, error)
	OpeningsByWinRate(ctx context.Context, minGames int) ([]profile.OpeningStats, error)
	RepresentativeGames(ctx context.Context) (*coach.Representative, error)
	Update(ctx context.Context) (*coach.Snapshot, error)
	Rebuild(ctx context.Context) (*coach.Snapshot, error)
}

// Compile-time check that the coach satisfies ProfileService.
var _ ProfileService = (*coach.Coach)(nil)

// Tool is a function the model may call. Run receives the raw JSON
// arguments and returns the text handed back to the model.
type Tool struct {
	Spec ToolSpec
	Run  func(ctx context.Context, args json.RawMessage) (string, error)
}

var (
	noParams       = json.RawMessage(`{"type":"object","properties":{}}`)
	queryParams    = json.RawMessage(`{"type":"object","properties":{"query":{"type":"string","description":"The question about the player's profile."}}}`)
	minGamesParams = json.RawMessage(`{"type":"object","properties":{"min_games":{"type":"integer","description":"Only include openings played at least this many times.","minimum":1}}}`)
)

// Tools returns the coaching tools backed by svc. profileInfo is the
// player's own description of their chess, included in profile answers.
func Tools(svc ProfileService, profileInfo string) []Tool {
	return []Tool{
		{
			Spec: ToolSpec{
				Name:        "query_chess_profile",
				Description: "Look up the player's chess profile: style tags, record, opening tallies, dip statistics and ratings. Use it for questions about style, openings or stats.",
				Parameters:  queryParams,
			},
			Run: func(ctx context.Context, _ json.RawMessage) (string, error) {
				snap, err := svc.Profile(ctx)
				if err != nil {
					return "", err
				}
				if snap.Profile.TotalGames == 0 && snap.Profile.FetchedGames == 0 {
					return "The chess profile has not been built yet. Run the update_player_profile tool to generate it.", nil
				}
				return encode(struct {
					Summary     string          `json:"summary"`
					ProfileInfo string          `json:"profile_info,omitempty"`
					Snapshot    *coach.Snapshot `json:"snapshot"`
				}{snap.Profile.Summary(), profileInfo, snap})
			},
		},
		{
			Spec: ToolSpec{
				Name:        "openings_by_win_rate",
				Description: "List the openings the player has played, best win rate first, with win-loss-draw tallies.",
				Parameters:  minGamesParams,
			},
			Run: func(ctx context.Context, args json.RawMessage) (string, error) {
				var in struct {
					MinGames int `json:"min_games"`
				}
				if err := decodeArgs(args, &in); err != nil {
					return "", err
				}
				list, err := svc.OpeningsByWinRate(ctx, max(in.MinGames, 1))
				if err != nil {
					return "", err
				}
				if len(list) == 0 {
					return "No openings have been played often enough yet.", nil
				}
				var b strings.Builder
				for _, o := range list {
					fmt.Fprintf(&b, "%s (%s): %d games, %s, win rate %.0f%%\n", o.Name, o.ECO, o.Games, o.Tally(), o.WinRate()*100)
				}
				return b.String(), nil
			},
		},
		{
			Spec: ToolSpec{
				Name:        "representative_games",
				Description: "Show representative games: the cleanest win, the best recovery from a losing position, a typical loss and a few games per result.",
				Parameters:  noParams,
			},
			Run: func(ctx context.Context, _ json.RawMessage) (string, error) {
				reps, err := svc.RepresentativeGames(ctx)
				if err != nil {
					return "", err
				}
				return encode(reps)
			},
		},
		{
			Spec: ToolSpec{
				Name:        "update_player_profile",
				Description: "Fetch the player's latest games, analyse the new ones and update the profile.",
				Parameters:  noParams,
			},
			Run: func(ctx context.Context, _ json.RawMessage) (string, error) {
				snap, err := svc.Update(ctx)
				if err != nil {
					return "", err
				}
				return refreshed("updated", snap), nil
			},
		},
		{
			Spec: ToolSpec{
				Name:        "rebuild_player_profile",
				Description: "Force a rebuild of the player profile from scratch, re-analysing every game.",
				Parameters:  noParams,
			},
			Run: func(ctx context.Context, _ json.RawMessage) (string, error) {
				snap, err := svc.Rebuild(ctx)
				if err != nil {
					return "", err
				}
				return refreshed("rebuilt", snap), nil
			},
		},
	}
}

func refreshed(verb string, snap *coach.Snapshot) string {
	msg := fmt.Sprintf("Player profile has been %s: %d of %d games analysed.", verb, snap.Profile.TotalGames, snap.Profile.FetchedGames)
	if n := len(snap.Failed); n > 0 {
		msg += fmt.Sprintf(" %d games could not be analysed and will be retried next time.", n)
	}
	return msg
}

func decodeArgs(args json.RawMessage, v any) error {
	s := strings.TrimSpace(string(args))
	if s == "" || s == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func encode(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
