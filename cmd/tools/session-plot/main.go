// Command session-plot renders a recorded telemetry session to PNG.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/banshee-data/guidecane/internal/security"
	"github.com/banshee-data/guidecane/internal/telemetry"
)

var (
	dbPath    = flag.String("db", "guidecane.db", "Telemetry database")
	sessionID = flag.String("session", "", "Session id (defaults to the most recent)")
	outPath   = flag.String("out", "", "Output PNG (defaults to the session label)")
	limit     = flag.Int("limit", 0, "Plot only the most recent N decisions (0 = all)")
	list      = flag.Bool("list", false, "List sessions and exit")
)

func main() {
	flag.Parse()

	store, err := telemetry.OpenRaw(*dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer store.Close()

	sessions, err := store.Sessions(50)
	if err != nil {
		log.Fatalf("failed to list sessions: %v", err)
	}
	if *list {
		for _, s := range sessions {
			fmt.Printf("%s  %s  %-10s %s\n", s.ID, s.Started.Format("2006-01-02 15:04:05"), s.Protocol, s.Label)
		}
		return
	}

	id := *sessionID
	if id == "" {
		if len(sessions) == 0 {
			log.Fatal("no sessions recorded")
		}
		id = sessions[0].ID
	}

	out := *outPath
	if out == "" {
		label := id
		for _, s := range sessions {
			if s.ID == id && s.Label != "" {
				label = s.Label
			}
		}
		out = security.SafeFileName(label) + ".png"
	}
	if err := security.ValidateOutputPath(out); err != nil {
		log.Fatalf("refusing to write plot: %v", err)
	}

	rows, err := store.Decisions(id, *limit)
	if err != nil {
		log.Fatalf("failed to load decisions: %v", err)
	}

	f, err := os.Create(out)
	if err != nil {
		log.Fatalf("failed to create %s: %v", out, err)
	}
	if err := renderSessionPlot(f, "session "+id, rows); err != nil {
		f.Close()
		log.Fatalf("failed to render plot: %v", err)
	}
	if err := f.Close(); err != nil {
		log.Fatalf("failed to write %s: %v", out, err)
	}

	st := summarise(rows)
	fmt.Printf("session %s: %d decisions, mean %.3f, stddev %.3f, mean |cmd| %.3f\n", id, st.Count, st.Mean, st.StdDev, st.MeanAbs)
	modes := make([]string, 0, len(st.Modes))
	for m := range st.Modes {
		modes = append(modes, m)
	}
	sort.Strings(modes)
	for _, m := range modes {
		fmt.Printf("  %-10s %d\n", m, st.Modes[m])
	}
	fmt.Printf("wrote %s\n", out)
}
