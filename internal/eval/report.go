package eval

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// WriteReport renders per-label precision/recall/F1/support with micro and
// macro averages, one label per row in lexical order. th may be nil; when
// set, each label's tuned threshold is included.
func WriteReport(w io.Writer, res *Results, th *Thresholds) error {
	byLabel := map[string]float64{}
	if th != nil {
		for i, l := range th.Labels {
			byLabel[l] = th.Values[i]
		}
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if th != nil {
		fmt.Fprintln(tw, "label\tprecision\trecall\tf1\tsupport\tthreshold")
	} else {
		fmt.Fprintln(tw, "label\tprecision\trecall\tf1\tsupport")
	}

	for _, label := range res.SortedLabels() {
		m := res.PerLabel[label]
		if th != nil {
			fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%.3f\t%d\t%.2f\n",
				label, m.Precision, m.Recall, m.F1, m.Support, byLabel[label])
		} else {
			fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%.3f\t%d\n",
				label, m.Precision, m.Recall, m.F1, m.Support)
		}
	}

	fmt.Fprintln(tw, "\t\t\t\t")
	fmt.Fprintf(tw, "micro avg\t%.3f\t%.3f\t%.3f\t%d\n",
		res.Micro.Precision, res.Micro.Recall, res.Micro.F1, res.Micro.Support)
	fmt.Fprintf(tw, "macro avg\t%.3f\t%.3f\t%.3f\t%d\n",
		res.Macro.Precision, res.Macro.Recall, res.Macro.F1, res.Macro.Support)
	return tw.Flush()
}
