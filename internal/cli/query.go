package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/cagehq/cage/internal/event"
	"github.com/cagehq/cage/internal/query"
	"github.com/cagehq/cage/internal/store"
)

var (
	qSessions []string
	qTypes    []string
	qFrom     string
	qTo       string
	qLimit    int
	qOffset   int
	qOffline  bool
)

func init() {
	rootCmd.AddCommand(queryCmd, statsCmd)
	for _, c := range []*cobra.Command{queryCmd, statsCmd} {
		c.Flags().StringSliceVar(&qSessions, "session", nil, "filter by session id (repeatable)")
		c.Flags().StringSliceVar(&qTypes, "type", nil, "filter by event type (repeatable)")
		c.Flags().StringVar(&qFrom, "from", "", "start date (YYYY-MM-DD)")
		c.Flags().StringVar(&qTo, "to", "", "end date (YYYY-MM-DD)")
		c.Flags().BoolVar(&qOffline, "offline", false, "read partitions directly instead of asking the server")
	}
	queryCmd.Flags().IntVar(&qLimit, "limit", 100, "page size")
	queryCmd.Flags().IntVar(&qOffset, "offset", 0, "page offset")
}

var queryCmd = &cobra.Command{
	Use:          "query",
	Short:        "Query stored events",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if qOffline {
			return runOffline(func(e *query.Engine, p query.Params) (any, error) {
				return e.Query(p)
			})
		}
		v := url.Values{}
		for _, s := range qSessions {
			v.Add("session", s)
		}
		for _, t := range qTypes {
			v.Add("type", t)
		}
		setIfNotEmpty(v, "from", qFrom)
		setIfNotEmpty(v, "to", qTo)
		v.Set("limit", strconv.Itoa(qLimit))
		v.Set("offset", strconv.Itoa(qOffset))
		return fetchJSON("/events?" + v.Encode())
	},
}

var statsCmd = &cobra.Command{
	Use:          "stats",
	Short:        "Aggregate statistics over stored events",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if qOffline {
			return runOffline(func(e *query.Engine, p query.Params) (any, error) {
				return e.Stats(p)
			})
		}
		v := url.Values{}
		for _, s := range qSessions {
			v.Add("session", s)
		}
		for _, t := range qTypes {
			v.Add("type", t)
		}
		setIfNotEmpty(v, "from", qFrom)
		setIfNotEmpty(v, "to", qTo)
		return fetchJSON("/stats?" + v.Encode())
	},
}

func setIfNotEmpty(v url.Values, key, val string) {
	if val != "" {
		v.Set(key, val)
	}
}

// fetchJSON GETs path from the running collector and pretty-prints the
// response body.
func fetchJSON(path string) error {
	loader, err := loadConfig()
	if err != nil {
		return err
	}
	resp, err := http.Get(loader.Config().BaseURL() + path)
	if err != nil {
		return fmt.Errorf("collector unreachable (is it started?): %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("collector returned %s: %s", resp.Status, body)
	}
	return printJSON(json.RawMessage(body))
}

// runOffline answers from the partitions on disk, bypassing the server.
func runOffline(fn func(*query.Engine, query.Params) (any, error)) error {
	loader, err := loadConfig()
	if err != nil {
		return err
	}
	var p query.Params
	for _, s := range qSessions {
		p.SessionIDs = append(p.SessionIDs, s)
	}
	for _, s := range qTypes {
		t, ok := event.ParseType(s)
		if !ok {
			return fmt.Errorf("unknown event type %q", s)
		}
		p.Types = append(p.Types, t)
	}
	if p.From, err = parseDateFlag(qFrom); err != nil {
		return err
	}
	if p.To, err = parseDateFlag(qTo); err != nil {
		return err
	}
	p.Limit = qLimit
	p.Offset = qOffset

	eng := query.New(store.New(loader.Config().Storage.EventsDir))
	res, err := fn(eng, p)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func parseDateFlag(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(store.DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
