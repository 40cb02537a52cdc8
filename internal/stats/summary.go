package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/tyemirov/treemerge/internal/merge"
)

// Format selects the summary rendering.
type Format string

// Supported summary formats.
const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
)

const (
	unsupportedFormatTemplateConstant = "%w: %q"
	jsonIndentConstant                = "  "
	yamlIndentConstant                = 2
	consoleCounterHeaderConstant      = "KEY\tMERGED\tCONFLICTING"
	consoleCounterRowTemplateConstant = "%s\t%s\t%s\n"
	consoleTotalsTemplateConstant     = "conflicts: %s  failed jobs: %s  runtime: %s ms\n"
	consoleJobRowTemplateConstant     = "%s\t%s\t%s\t%s\n"
	consoleJobHeaderConstant          = "JOB\tCONFLICTS\tLINES\tRUNTIME"
	consoleFailedJobTemplateConstant  = "%s\tfailed: %s\n"
	consoleLinesTemplateConstant      = "%s/%s"
	consoleRuntimeTemplateConstant    = "%s ms"
)

// ErrUnsupportedFormat indicates an unknown summary format.
var ErrUnsupportedFormat = errors.New("unsupported statistics format")

// ParseFormat resolves a format name; an empty name selects the console format.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case "", FormatConsole:
		return FormatConsole, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML:
		return FormatYAML, nil
	default:
		return "", fmt.Errorf(unsupportedFormatTemplateConstant, ErrUnsupportedFormat, value)
	}
}

// Summary is the batch-wide statistics snapshot.
type Summary struct {
	Counters            map[string]Counter `json:"counters" yaml:"counters"`
	Conflicts           int                `json:"conflicts" yaml:"conflicts"`
	RuntimeMilliseconds int64              `json:"runtime_ms" yaml:"runtime_ms"`
	Jobs                []JobRecord        `json:"jobs" yaml:"jobs"`
}

// FailedJobs counts job records describing failures.
func (summary Summary) FailedJobs() int {
	return lo.CountBy(summary.Jobs, func(record JobRecord) bool {
		return record.Failed()
	})
}

// Counter returns the counter for a key, zero when absent.
func (summary Summary) Counter(key string) Counter {
	return summary.Counters[key]
}

// Render writes the summary in the requested format.
func (summary Summary) Render(writer io.Writer, format Format) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(writer)
		encoder.SetIndent("", jsonIndentConstant)
		return encoder.Encode(summary)
	case FormatYAML:
		encoder := yaml.NewEncoder(writer)
		encoder.SetIndent(yamlIndentConstant)
		if encodeError := encoder.Encode(summary); encodeError != nil {
			return encodeError
		}
		return encoder.Close()
	case FormatConsole, "":
		return summary.renderConsole(writer)
	default:
		return fmt.Errorf(unsupportedFormatTemplateConstant, ErrUnsupportedFormat, string(format))
	}
}

func (summary Summary) renderConsole(writer io.Writer) error {
	tableWriter := tabwriter.NewWriter(writer, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tableWriter, consoleCounterHeaderConstant)
	presentKeys := lo.Filter(merge.StatsKeys, func(key string, _ int) bool {
		_, exists := summary.Counters[key]
		return exists
	})
	for _, key := range presentKeys {
		counter := summary.Counters[key]
		fmt.Fprintf(tableWriter, consoleCounterRowTemplateConstant, key, humanize.Comma(int64(counter.Merged)), humanize.Comma(int64(counter.Conflicting)))
	}
	if flushError := tableWriter.Flush(); flushError != nil {
		return flushError
	}

	if _, writeError := fmt.Fprintf(writer, consoleTotalsTemplateConstant,
		humanize.Comma(int64(summary.Conflicts)),
		humanize.Comma(int64(summary.FailedJobs())),
		humanize.Comma(summary.RuntimeMilliseconds),
	); writeError != nil {
		return writeError
	}

	if len(summary.Jobs) == 0 {
		return nil
	}

	fmt.Fprintln(tableWriter, consoleJobHeaderConstant)
	rows := lo.Map(summary.Jobs, func(record JobRecord, _ int) string {
		identity := strings.Join([]string{record.Left, record.Base, record.Right}, " ")
		if record.Failed() {
			return fmt.Sprintf(consoleFailedJobTemplateConstant, identity, record.Error)
		}
		return fmt.Sprintf(consoleJobRowTemplateConstant,
			identity,
			humanize.Comma(int64(record.Conflicts)),
			fmt.Sprintf(consoleLinesTemplateConstant, humanize.Comma(int64(record.ConflictingLines)), humanize.Comma(int64(record.TotalLines))),
			fmt.Sprintf(consoleRuntimeTemplateConstant, humanize.Comma(record.RuntimeMilliseconds)),
		)
	})
	for _, row := range rows {
		fmt.Fprint(tableWriter, row)
	}
	return tableWriter.Flush()
}
