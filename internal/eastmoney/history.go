package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/trogers1052/fund-metrics/internal/models"
)

// jsonpCallback is the callback name the history API expects
const jsonpCallback = "jQuery18305293200554312854_1705643555097"

var jsonpPattern = regexp.MustCompile(`(?s)^[^(]*\((.*)\)\s*;?\s*$`)

type historyResponse struct {
	Data *struct {
		LSJZList []historyRow `json:"LSJZList"`
	} `json:"Data"`
	ErrCode    int     `json:"ErrCode"`
	ErrMsg     *string `json:"ErrMsg"`
	TotalCount int     `json:"TotalCount"`
}

// historyRow is one NAV entry: FSRQ date, DWJZ unit NAV, LJJZ cumulative
// NAV, JZZZL reported change percentage
type historyRow struct {
	FSRQ  string `json:"FSRQ"`
	DWJZ  string `json:"DWJZ"`
	LJJZ  string `json:"LJJZ"`
	JZZZL string `json:"JZZZL"`
}

// FetchHistory returns the full NAV history of a fund ascending by trading
// day with one observation per day. Rows without a cumulative NAV are
// skipped.
func (c *Client) FetchHistory(ctx context.Context, code string) ([]models.Observation, error) {
	first, err := c.fetchPage(ctx, code, 1)
	if err != nil {
		return nil, err
	}

	pages := (first.TotalCount + c.pageSize - 1) / c.pageSize
	rows := first.rows()
	for page := 2; page <= pages; page++ {
		resp, err := c.fetchPage(ctx, code, page)
		if err != nil {
			return nil, err
		}
		rows = append(rows, resp.rows()...)
	}

	seen := make(map[string]struct{}, len(rows))
	out := make([]models.Observation, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		if _, dup := seen[row.FSRQ]; dup {
			continue
		}
		obs, err := row.observation()
		if err != nil {
			skipped++
			c.log.Warn().Err(err).Str("code", code).Str("day", row.FSRQ).Msg("skipping history row")
			continue
		}
		seen[row.FSRQ] = struct{}{}
		out = append(out, obs)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].TradingDay.Before(out[j].TradingDay)
	})

	c.log.Info().
		Str("code", code).
		Int("total", first.TotalCount).
		Int("pages", pages).
		Int("observations", len(out)).
		Int("skipped", skipped).
		Msg("fetched fund history")
	return out, nil
}

func (c *Client) fetchPage(ctx context.Context, code string, page int) (*historyResponse, error) {
	params := url.Values{}
	params.Set("callback", jsonpCallback)
	params.Set("fundCode", code)
	params.Set("pageIndex", strconv.Itoa(page))
	params.Set("pageSize", strconv.Itoa(c.pageSize))

	header := http.Header{}
	header.Set("Referer", fmt.Sprintf("http://fundf10.eastmoney.com/jjjz_%s.html", code))

	body, _, err := c.get(ctx, c.historyURL, params, header)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history page %d for %s: %w", page, code, err)
	}

	m := jsonpPattern.FindSubmatch(body)
	if m == nil {
		return nil, fmt.Errorf("failed to parse history page %d for %s: not a jsonp response", page, code)
	}

	var resp historyResponse
	if err := json.Unmarshal(m[1], &resp); err != nil {
		return nil, fmt.Errorf("failed to decode history page %d for %s: %w", page, code, err)
	}
	if resp.ErrCode != 0 {
		msg := ""
		if resp.ErrMsg != nil {
			msg = *resp.ErrMsg
		}
		return nil, fmt.Errorf("history api error for %s: code %d: %s", code, resp.ErrCode, msg)
	}
	return &resp, nil
}

func (r *historyResponse) rows() []historyRow {
	if r.Data == nil {
		return nil
	}
	return r.Data.LSJZList
}

func (r historyRow) observation() (models.Observation, error) {
	day, err := models.ParseDay(r.FSRQ)
	if err != nil {
		return models.Observation{}, fmt.Errorf("invalid date %q: %w", r.FSRQ, err)
	}
	cum, err := decimal.NewFromString(r.LJJZ)
	if err != nil {
		return models.Observation{}, fmt.Errorf("invalid cumulative nav %q: %w", r.LJJZ, err)
	}
	unit, err := decimal.NewFromString(r.DWJZ)
	if err != nil {
		return models.Observation{}, fmt.Errorf("invalid unit nav %q: %w", r.DWJZ, err)
	}

	obs := models.Observation{TradingDay: day, UnitNAV: unit, CumNAV: cum}
	if pct, err := decimal.NewFromString(r.JZZZL); err == nil {
		obs.ReportedChangePct = decimal.NewNullDecimal(pct)
	}
	return obs, nil
}
