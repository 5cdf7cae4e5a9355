package main

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/beanatlas/coffee-cli/internal/export"
	"github.com/beanatlas/coffee-cli/internal/store"
)

var (
	exportFormat        string
	exportOutput        string
	exportRoasterID     string
	exportAvailableOnly bool
	exportFTPURL        string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export products to CSV, JSON, or XLSX",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		format, err := export.ParseFormat(exportFormat)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		products, err := st.ListProducts(ctx, store.ProductFilter{
			RoasterID:     exportRoasterID,
			AvailableOnly: exportAvailableOnly,
		})
		if err != nil {
			return eris.Wrap(err, "list products")
		}

		outPath := exportOutput
		if outPath == "" {
			outPath = "products" + format.Ext()
		}

		f, err := os.Create(outPath)
		if err != nil {
			return eris.Wrap(err, "create export file")
		}
		if err := export.Write(f, format, products); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return eris.Wrap(err, "close export file")
		}

		zap.L().Info("export complete",
			zap.Int("products", len(products)),
			zap.String("format", string(format)),
			zap.String("file", outPath),
		)

		if exportFTPURL != "" {
			deliverer := export.NewFTPDeliverer(export.FTPOptions{Timeout: 30 * time.Second})
			if err := deliverer.Deliver(ctx, exportFTPURL, outPath); err != nil {
				return eris.Wrap(err, "ftp delivery")
			}
			zap.L().Info("ftp delivery complete", zap.String("url", exportFTPURL))
		}

		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: csv, json, or xlsx")
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "output file path (default products.<format>)")
	exportCmd.Flags().StringVar(&exportRoasterID, "roaster", "", "only export products of one roaster")
	exportCmd.Flags().BoolVar(&exportAvailableOnly, "available-only", false, "skip products marked unavailable")
	exportCmd.Flags().StringVar(&exportFTPURL, "ftp", "", "deliver the export to an ftp:// URL after writing")
	rootCmd.AddCommand(exportCmd)
}
