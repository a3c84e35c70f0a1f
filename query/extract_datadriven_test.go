package query

import (
	"fmt"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/stretchr/testify/require"
)

func TestExtractDataDriven(t *testing.T) {
	datadriven.RunTest(t, "testdata/extract", func(t *testing.T, td *datadriven.TestData) string {
		switch td.Cmd {
		case "extract":
			expr, err := ParseExpression(td.Input)
			require.NoError(t, err)
			result := ExtractTerms(expr)
			if !result.Supported {
				return fmt.Sprintf("supported=false reason=%s\n", result.Reason)
			}
			return fmt.Sprintf("supported=true terms=%v\n", result.Terms)
		default:
			t.Fatalf("unknown command %q", td.Cmd)
			return ""
		}
	})
}
