package journal

import (
	"io"
	"os"
	"text/template"
	"time"

	"github.com/rustyeddy/papertrader/perf"
)

// SessionReport is the org summary of one paper-trading session or replay.
type SessionReport struct {
	SessionID string
	Created   time.Time
	Source    string // "live" or the replay dataset
	Timeframe string

	Instruments []string
	Start       time.Time
	End         time.Time

	Capital float64
	RiskPct float64

	Summary perf.Summary
	Trades  []TradeRecord

	Notes       []string
	NextActions []string
}

func (r *SessionReport) EndCapital() float64 { return r.Capital + r.Summary.TotalPnL }

func (r *SessionReport) ReturnPct() float64 {
	if r.Capital == 0 {
		return 0
	}
	return r.Summary.TotalPnL / r.Capital * 100
}

var sessionOrgFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
	"trade": FormatTradeOrg,
}

var sessionOrg = template.Must(template.New("session").Funcs(sessionOrgFuncs).Parse(SessionOrgTemplate))

// WriteOrg renders the report into w.
func (r *SessionReport) WriteOrg(w io.Writer) error {
	return sessionOrg.Execute(w, r)
}

// WriteOrgFile renders the report into path.
func (r *SessionReport) WriteOrgFile(path string) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.WriteOrg(fh); err != nil {
		_ = fh.Close()
		return err
	}
	return fh.Close()
}

const SessionOrgTemplate = `
* PAPER SESSION: {{range $i, $s := .Instruments}}{{if $i}}, {{end}}{{$s}}{{end}} {{if .Timeframe}}{{.Timeframe}}{{else}}(timeframe?){{end}}
:PROPERTIES:
:SESSION_ID:  {{if .SessionID}}{{.SessionID}}{{else}}(session-id?){{end}}
:SOURCE:      {{if .Source}}{{.Source}}{{else}}live{{end}}
:START_DATE:  {{.Start.Format "2006-01-02"}}
:END_DATE:    {{.End.Format "2006-01-02"}}
:START_CAP:   {{printf "%.2f" .Capital}}
:END_CAP:     {{printf "%.2f" .EndCapital}}
:NET_PL:      {{printf "%.2f" .Summary.TotalPnL}}
:RETURN_PCT:  {{printf "%.2f" .ReturnPct}}
:MAX_DD:      {{printf "%.2f" .Summary.MaxDrawdown}}
:TRADES:      {{.Summary.TotalTrades}}
:WINS:        {{.Summary.Wins}}
:LOSSES:      {{.Summary.Losses}}
:WIN_RATE:    {{printf "%.2f" (mul100 .Summary.WinRate)}}
:PROFIT_FAC:  {{printf "%.2f" .Summary.ProfitFactor}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Risk Parameters
| Parameter        | Value |
|------------------+-------|
| Capital          | {{printf "%.2f" .Capital}} |
| Risk per Trade % | {{printf "%.2f" (mul100 .RiskPct)}} |

** Performance Summary
- Net P/L:          *{{printf "%.2f" .Summary.TotalPnL}}*
- Return:           *{{printf "%.2f" .ReturnPct}}%*
- Max Drawdown:     *{{printf "%.2f" .Summary.MaxDrawdown}}*
- Win Rate:         *{{printf "%.2f" (mul100 .Summary.WinRate)}}%*
- Profit Factor:    *{{printf "%.2f" .Summary.ProfitFactor}}*
- Expectancy:       *{{printf "%.2f" .Summary.Expectancy}}*
- Max Loss Streak:  *{{.Summary.MaxConsecutiveLosses}}*

** Daily P/L
| Day | Trades | P/L |
|-----+--------+-----|
{{- range .Summary.Daily }}
| {{.Day}} | {{.Trades}} | {{printf "%.2f" .PnL}} |
{{- end }}

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Summary.Wins}} |
| Losses  | {{.Summary.Losses}} |
| Total   | {{.Summary.TotalTrades}} |

{{- if .Trades }}

* Trades
{{- range .Trades }}
{{ trade . }}
{{- end }}
{{- end }}

{{- if .Notes }}
** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}

{{- if .NextActions }}
** Notes / Next Actions
{{- range .NextActions }}
- [ ] {{.}}
{{- end }}
{{- end }}
`
