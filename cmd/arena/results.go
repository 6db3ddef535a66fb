package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/OCAP2/arena/internal/database"
	"github.com/OCAP2/arena/internal/logging"
	gormstorage "github.com/OCAP2/arena/internal/storage/gorm"
	"github.com/OCAP2/arena/pkg/core"
)

// matchReport is what the results command prints.
type matchReport struct {
	Match core.MatchState `json:"match"`
	Shots []shotRow       `json:"shots,omitempty"`
}

type shotRow struct {
	ShooterID string    `json:"shooterId"`
	Time      time.Time `json:"time"`
	Origin    core.Vec2 `json:"origin"`
	Target    core.Vec2 `json:"target"`
	Damage    int       `json:"damage"`
}

func (c *resultsCmd) run(level string) error {
	dbLog := logging.NewZerolog(os.Stderr, level, nil, nil)
	info, err := os.Stat(c.File)
	if err != nil {
		return err
	}
	files := []string{c.File}
	if info.IsDir() {
		if files, err = database.GetBackupDBPaths(c.File); err != nil {
			return err
		}
	}

	for _, file := range files {
		report, err := c.load(dbLog, file)
		if errors.Is(err, gormstorage.ErrUnknownMatch) && len(files) > 1 {
			continue
		}
		if err != nil {
			return err
		}
		return c.print(report)
	}
	return fmt.Errorf("match %s not found in %s", c.Match, c.File)
}

func (c *resultsCmd) load(dbLog zerolog.Logger, file string) (matchReport, error) {
	manager := database.NewManager(dbLog)
	if err := manager.ConnectSqlite(file); err != nil {
		return matchReport{}, fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer func() { _ = manager.Close() }()
	db := manager.DB

	st, err := gormstorage.LoadMatch(db, c.Match)
	if err != nil {
		return matchReport{}, err
	}
	report := matchReport{Match: st}
	if !c.Shots {
		return report, nil
	}
	shots, err := gormstorage.LoadShots(db, c.Match)
	if err != nil {
		return matchReport{}, err
	}
	for _, s := range shots {
		report.Shots = append(report.Shots, shotRow{
			ShooterID: s.ShooterID,
			Time:      s.Time,
			Origin:    s.Origin,
			Target:    s.Target,
			Damage:    s.Damage,
		})
	}
	return report, nil
}

func (c *resultsCmd) print(report matchReport) error {
	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return writeReport(os.Stdout, report)
}

func writeReport(out io.Writer, r matchReport) error {
	m := r.Match
	fmt.Fprintf(out, "Match %s on %s (%s, %ds) status %s\n",
		m.Code, m.Settings.MapID, m.Settings.Mode, m.Settings.DurationSeconds, m.Status)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if m.Result != nil {
		if m.Result.Draw {
			fmt.Fprintln(out, "Result: draw")
		} else {
			fmt.Fprintf(out, "Winner: %s\n", m.Result.WinnerID)
		}
		fmt.Fprintln(tw, "RANK\tPLAYER\tSCORE\tKILLS\tDEATHS\tK/D\tHEALTH")
		for _, e := range m.Result.Rankings {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%.2f\t%d\n",
				e.Rank, e.PlayerID, e.Score, e.Kills, e.Deaths, e.KDRatio, e.Health)
		}
	} else {
		fmt.Fprintln(tw, "PLAYER\tSCORE\tKILLS\tDEATHS")
		for _, p := range m.Players {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", p.ID, p.Score, p.Kills, p.Deaths)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(r.Shots) == 0 {
		return nil
	}
	fmt.Fprintf(out, "\n%d shots\n", len(r.Shots))
	for _, s := range r.Shots {
		fmt.Fprintf(tw, "%s\t%s\t(%.0f,%.0f)\t->\t(%.0f,%.0f)\t%d\n",
			s.Time.UTC().Format(time.RFC3339), s.ShooterID,
			s.Origin.X, s.Origin.Y, s.Target.X, s.Target.Y, s.Damage)
	}
	return tw.Flush()
}
