package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/wricardo/connectfour/game/archive"
)

// PlayerStats aggregates archived matches for one player.
type PlayerStats struct {
	Player   string
	Games    int
	Wins     int
	Losses   int
	Draws    int
	Forfeits int
	Moves    int
}

// AverageMoves is the mean match length, or 0 without games.
func (p PlayerStats) AverageMoves() float64 {
	if p.Games == 0 {
		return 0
	}
	return float64(p.Moves) / float64(p.Games)
}

// Summarize groups records by player, best record first. A forfeit counts as
// a win for the winner and a loss plus a forfeit for the other player.
func Summarize(records []archive.MatchRecord) []PlayerStats {
	byPlayer := make(map[string]*PlayerStats)
	get := func(name string) *PlayerStats {
		ps, ok := byPlayer[name]
		if !ok {
			ps = &PlayerStats{Player: name}
			byPlayer[name] = ps
		}
		return ps
	}

	for _, rec := range records {
		for _, name := range []string{rec.Host, rec.Guest} {
			if name == "" {
				continue
			}
			ps := get(name)
			ps.Games++
			ps.Moves += rec.Moves
			switch {
			case rec.Outcome == archive.OutcomeDrawn:
				ps.Draws++
			case rec.Winner == name:
				ps.Wins++
			default:
				ps.Losses++
				if rec.Outcome == archive.OutcomeForfeit {
					ps.Forfeits++
				}
			}
		}
	}

	stats := make([]PlayerStats, 0, len(byPlayer))
	for _, ps := range byPlayer {
		stats = append(stats, *ps)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Wins != stats[j].Wins {
			return stats[i].Wins > stats[j].Wins
		}
		if stats[i].Games != stats[j].Games {
			return stats[i].Games < stats[j].Games
		}
		return stats[i].Player < stats[j].Player
	})
	return stats
}

// printMatches writes the match list followed by the per-player table.
func printMatches(w io.Writer, records []archive.MatchRecord) {
	fmt.Fprintf(w, "=== %d recent matches ===\n", len(records))
	for _, rec := range records {
		result := "draw"
		if rec.Outcome != archive.OutcomeDrawn {
			result = fmt.Sprintf("%s won (%s)", rec.Winner, rec.Outcome)
		}
		fmt.Fprintf(w, "%s  %-6s  %s vs %s: %s in %d moves\n",
			rec.FinishedAt.Format("2006-01-02 15:04"), rec.RoomCode, rec.Host, rec.Guest, result, rec.Moves)
	}
	if len(records) == 0 {
		return
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PLAYER\tGAMES\tWON\tLOST\tDRAWN\tFORFEITS\tAVG MOVES")
	for _, ps := range Summarize(records) {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%.1f\n",
			ps.Player, ps.Games, ps.Wins, ps.Losses, ps.Draws, ps.Forfeits, ps.AverageMoves())
	}
	tw.Flush()
}
