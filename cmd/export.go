package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

var (
	exportPath  string
	exportLimit int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the seen set to an XLSX workbook",
	Long:  "Writes every recorded listing (newest first) to a spreadsheet for offline review.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		metas, err := env.Store.ListSeen(ctx, exportLimit)
		if err != nil {
			return err
		}

		f := xlsx.NewFile()
		sheet, err := f.AddSheet("Listings")
		if err != nil {
			return eris.Wrap(err, "export: add sheet")
		}

		header := sheet.AddRow()
		for _, h := range []string{"External ID", "Link", "District", "Price", "Sink Record", "Seen At"} {
			header.AddCell().Value = h
		}

		for _, m := range metas {
			row := sheet.AddRow()
			row.AddCell().Value = m.ExternalID
			row.AddCell().Value = m.Link
			row.AddCell().Value = m.District
			row.AddCell().SetInt64(m.Price)
			row.AddCell().Value = m.SinkRecordID
			row.AddCell().Value = m.SeenAt.Format("2006-01-02 15:04:05")
		}

		if err := f.Save(exportPath); err != nil {
			return eris.Wrapf(err, "export: save %s", exportPath)
		}

		zap.L().Info("export finished",
			zap.String("path", exportPath), zap.Int("listings", len(metas)))
		fmt.Printf("wrote %d listings to %s\n", len(metas), exportPath)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportPath, "out", "listings.xlsx", "output file path")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 10000, "max listings to export")
	rootCmd.AddCommand(exportCmd)
}
