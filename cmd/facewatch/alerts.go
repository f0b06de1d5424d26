package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"facewatch/internal/app"
	"facewatch/internal/dto"
	"facewatch/internal/service/report"

	"github.com/spf13/cobra"
)

var alertFilter struct {
	camera int
	face   string
	since  string
	until  string
	limit  int
}

var exportPath string

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Query the alert log",
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List logged alerts, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := buildAlertFilter()
		if err != nil {
			return err
		}
		stores, err := app.OpenStores(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer stores.Close()

		alerts, err := stores.Alerts.Query(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if len(alerts) == 0 {
			fmt.Println("No alerts found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "TIME\tCAMERA\tNAME\tCONFIDENCE\tSCREENSHOT")
		fmt.Fprintln(w, "----\t------\t----\t----------\t----------")
		for _, a := range alerts {
			fmt.Fprintf(w, "%s\t%s\t%s\t%.1f%%\t%s\n", a.Timestamp.Local().Format("2006-01-02 15:04:05"),
				a.CameraName, a.FaceName, a.Confidence*100, a.ScreenshotPath)
		}
		return w.Flush()
	},
}

var alertsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export logged alerts to an xlsx workbook",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := buildAlertFilter()
		if err != nil {
			return err
		}
		stores, err := app.OpenStores(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer stores.Close()

		alerts, err := stores.Alerts.Query(cmd.Context(), filter)
		if err != nil {
			return err
		}
		stats, err := stores.Alerts.Stats(cmd.Context())
		if err != nil {
			return err
		}

		out, err := os.Create(exportPath)
		if err != nil {
			return err
		}
		if err := report.WriteAlerts(out, alerts, stats); err != nil {
			out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}
		fmt.Printf("Exported %d alert(s) to %s\n", len(alerts), exportPath)
		return nil
	},
}

func buildAlertFilter() (*dto.AlertFilters, error) {
	f := &dto.AlertFilters{
		CameraID: alertFilter.camera,
		FaceName: alertFilter.face,
		Limit:    alertFilter.limit,
	}
	var err error
	if f.Start, err = parseFlagTime(alertFilter.since); err != nil {
		return nil, fmt.Errorf("--since: %w", err)
	}
	if f.End, err = parseFlagTime(alertFilter.until); err != nil {
		return nil, fmt.Errorf("--until: %w", err)
	}
	return f, nil
}

// parseFlagTime accepts RFC 3339, "2006-01-02 15:04", "2006-01-02", or a
// duration meaning that long ago ("24h").
func parseFlagTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return time.Now().Add(-d), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, v, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", v)
}

func init() {
	for _, c := range []*cobra.Command{alertsListCmd, alertsExportCmd} {
		c.Flags().IntVar(&alertFilter.camera, "camera", 0, "only alerts from this camera id")
		c.Flags().StringVar(&alertFilter.face, "face", "", "only alerts for this name")
		c.Flags().StringVar(&alertFilter.since, "since", "", "start time (RFC 3339, date, or duration ago)")
		c.Flags().StringVar(&alertFilter.until, "until", "", "end time (RFC 3339, date, or duration ago)")
	}
	alertsListCmd.Flags().IntVar(&alertFilter.limit, "limit", 50, "maximum number of alerts")
	alertsExportCmd.Flags().StringVarP(&exportPath, "out", "o", "alerts.xlsx", "output file")

	alertsCmd.AddCommand(alertsListCmd, alertsExportCmd)
	rootCmd.AddCommand(alertsCmd)
}
