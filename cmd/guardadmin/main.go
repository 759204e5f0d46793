// guardadmin inspects the guard's offline audit data: the SQLite violation
// index, the hourly zstd archives, and a running server's summary endpoint.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"auroragui.dev/packetguard/internal/persistence/indexdb"
	"auroragui.dev/packetguard/internal/persistence/vlog"
	"auroragui.dev/packetguard/ops"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "top":
			topCmd(os.Args[2:])
			return
		case "history":
			historyCmd(os.Args[2:])
			return
		case "tail":
			tailCmd(os.Args[2:])
			return
		case "summary":
			summaryCmd(os.Args[2:])
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: guardadmin top|history|tail|summary [flags]")
	os.Exit(2)
}

func topCmd(args []string) {
	fs := flag.NewFlagSet("top", flag.ExitOnError)
	dbPath := fs.String("db", "./data/violations.db", "violation index path")
	n := fs.Int("n", 10, "number of offenders")
	_ = fs.Parse(args)

	idx, err := indexdb.Open(*dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open index:", err)
		os.Exit(1)
	}
	defer idx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rows, err := idx.TopOffenders(ctx, *n)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	if len(rows) == 0 {
		fmt.Println("no violations recorded")
		return
	}
	for i, r := range rows {
		fmt.Printf("%2d. %-16s total=%-4d max_severity=%d last=%s uuid=%s\n",
			i+1, r.PlayerName, r.Total, r.MaxSev, r.LastSeen, r.PlayerID)
	}
}

func historyCmd(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	dbPath := fs.String("db", "./data/violations.db", "violation index path")
	player := fs.String("player", "", "player uuid (required)")
	limit := fs.Int("limit", 50, "max rows")
	_ = fs.Parse(args)

	if strings.TrimSpace(*player) == "" {
		fmt.Fprintln(os.Stderr, "missing -player")
		os.Exit(2)
	}

	idx, err := indexdb.Open(*dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open index:", err)
		os.Exit(1)
	}
	defer idx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rows, err := idx.PlayerHistory(ctx, *player, *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	for _, r := range rows {
		fmt.Printf("%s gui=%s exploit=%s severity=%d %s\n", r.TS, r.GUI, r.Exploit, r.Severity, r.Details)
	}
}

func tailCmd(args []string) {
	fs := flag.NewFlagSet("tail", flag.ExitOnError)
	dir := fs.String("dir", "./data/violog", "archive directory")
	n := fs.Int("n", 20, "number of records")
	_ = fs.Parse(args)

	ents, err := os.ReadDir(*dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".jsonl.zst") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	// Walk newest files first until we have enough records.
	lines := make([]string, 0, *n)
	for i := len(names) - 1; i >= 0 && len(lines) < *n; i-- {
		rs, err := vlog.ReadFile(filepath.Join(*dir, names[i]))
		if err != nil {
			fmt.Fprintln(os.Stderr, "decode:", err)
			os.Exit(1)
		}
		for j := len(rs) - 1; j >= 0 && len(lines) < *n; j-- {
			lines = append(lines, rs[j].Line())
		}
	}
	for i := len(lines) - 1; i >= 0; i-- {
		fmt.Println(lines[i])
	}
}

func summaryCmd(args []string) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	url := fs.String("url", "http://localhost:8090/v1/summary", "summary endpoint")
	_ = fs.Parse(args)

	resp, err := http.Get(*url)
	if err != nil {
		fmt.Fprintln(os.Stderr, "get:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "status %d: %s\n", resp.StatusCode, strings.TrimSpace(string(b)))
		os.Exit(1)
	}
	var out ops.SummaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Fprintln(os.Stderr, "decode:", err)
		os.Exit(1)
	}
	fmt.Printf("generated at %s\n%s\n", out.GeneratedAt, out.Report)
}
