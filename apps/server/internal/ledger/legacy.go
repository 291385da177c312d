package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"clocktower-lite/grimoire"
	"clocktower-lite/script"
)

// ImportSummary counts what ImportCSV did with a legacy match log.
type ImportSummary struct {
	Matches    int `json:"matches"`
	Rows       int `json:"rows"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
}

// ImportCSV loads the flat match log "matchKey,class,username,role[,result]".
// Consecutive rows sharing a key form one game. Rows with fewer than four columns, a
// malformed key or an unknown class are skipped; a missing result is recomputed from
// the class and the winning team. Games already recorded count as duplicates.
func ImportCSV(ctx context.Context, r io.Reader, svc Service) (ImportSummary, error) {
	var sum ImportSummary

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = false

	var pending *grimoire.MatchResult
	flush := func() error {
		if pending == nil {
			return nil
		}
		m := pending
		pending = nil
		err := svc.RecordMatch(ctx, m)
		switch {
		case err == nil:
			sum.Matches++
			sum.Rows += len(m.Seats)
		case errors.Is(err, ErrDuplicateMatch):
			sum.Duplicates++
		default:
			return fmt.Errorf("record %s: %w", m.Key(), err)
		}
		return nil
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sum, fmt.Errorf("read legacy csv: %w", err)
		}
		seat, key, ok := parseLegacyRow(record)
		if !ok {
			sum.Skipped++
			continue
		}
		if pending == nil || pending.Key() != key.raw {
			if err := flush(); err != nil {
				return sum, err
			}
			pending = &grimoire.MatchResult{
				GameID:      key.GameID,
				Winner:      key.Winner,
				Storyteller: key.Storyteller,
				Script:      key.Script,
			}
		}
		pending.Seats = append(pending.Seats, seat)
	}
	if err := flush(); err != nil {
		return sum, err
	}
	log.Printf("[Ledger] legacy import: matches=%d rows=%d duplicates=%d skipped=%d",
		sum.Matches, sum.Rows, sum.Duplicates, sum.Skipped)
	return sum, nil
}

type legacyKey struct {
	grimoire.MatchKey
	raw string
}

func parseLegacyRow(record []string) (grimoire.SeatResult, legacyKey, bool) {
	if len(record) < 4 {
		return grimoire.SeatResult{}, legacyKey{}, false
	}
	mk, err := grimoire.ParseMatchKey(record[0])
	if err != nil {
		return grimoire.SeatResult{}, legacyKey{}, false
	}
	class, err := script.ParseCategory(record[1])
	if err != nil {
		return grimoire.SeatResult{}, legacyKey{}, false
	}
	username := strings.TrimSpace(record[2])
	if username == "" {
		return grimoire.SeatResult{}, legacyKey{}, false
	}

	won := grimoire.IsWinner(class, mk.Winner)
	if len(record) >= 5 {
		won = strings.TrimSpace(record[4]) == ResultWin
	}
	return grimoire.SeatResult{
		Class:    class,
		Username: username,
		Role:     grimoire.ScoringRole(strings.TrimSpace(record[3])),
		Won:      won,
	}, legacyKey{MatchKey: mk, raw: record[0]}, true
}

// ExportCSV writes every recorded game, oldest first, in the five-column legacy format.
func ExportCSV(ctx context.Context, w io.Writer, svc Service) error {
	matches, err := svc.RecentMatches(ctx, 0)
	if err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	for i := len(matches) - 1; i >= 0; i-- {
		for _, row := range matches[i].Rows {
			if err := writer.Write([]string{row.MatchKey, row.Class, row.Username, row.Role, row.Result}); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}
