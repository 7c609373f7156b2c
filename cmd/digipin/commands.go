package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/digipin/internal/cellgeo"
	"github.com/mohammed-shakir/digipin/pkg/digipin"
)

var errInvalidCode = errors.New("invalid code")

func newRootCmd() *cobra.Command {
	var asJSON bool

	root := &cobra.Command{
		Use:   "digipin",
		Short: "Encode and decode DIGIPIN grid codes",
		Long: `digipin converts latitude/longitude pairs inside the DIGIPIN bounding
region (lat 2.5..38.5, lon 63.5..99.5) to 10-symbol codes and back.

Codes may be given hyphenated (39J-49L-L8T4) or bare, in any case.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&asJSON, "json", false, "print results as JSON")

	root.AddCommand(
		newEncodeCmd(&asJSON),
		newDecodeCmd(&asJSON),
		newValidateCmd(&asJSON),
		newFormatCmd(),
		newBoundsCmd(),
		newCellCmd(),
	)
	return root
}

func newEncodeCmd(asJSON *bool) *cobra.Command {
	var level int
	cmd := &cobra.Command{
		Use:   "encode LAT LON",
		Short: "Encode a coordinate to a code",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("lat: %w", err)
			}
			lon, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("lon: %w", err)
			}

			var code string
			if level == digipin.Levels {
				code, err = digipin.Encode(lat, lon)
			} else {
				code, err = digipin.EncodeLevel(lat, lon, level)
			}
			if err != nil {
				return err
			}
			if *asJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"code": code, "lat": lat, "lon": lon})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), code)
			return err
		},
	}
	cmd.Flags().IntVar(&level, "level", digipin.Levels, "subdivision depth 1..10 (prefixes are printed unhyphenated)")
	return cmd
}

func newDecodeCmd(asJSON *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "decode CODE",
		Short: "Decode a code to its cell center and bounds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := digipin.Decode(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if *asJSON {
				return writeJSON(out, loc)
			}
			b := loc.Bounds
			_, err = fmt.Fprintf(out, "%.6f,%.6f\nbounds lat %.7f..%.7f lon %.7f..%.7f\n",
				loc.Lat, loc.Lon, b.MinLat, b.MaxLat, b.MinLon, b.MaxLon)
			return err
		},
	}
}

func newValidateCmd(asJSON *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "validate CODE",
		Short: "Check a code's length and alphabet (exit status 1 when invalid)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			valid := digipin.IsValidCode(args[0])
			out := cmd.OutOrStdout()
			var err error
			if *asJSON {
				err = writeJSON(out, map[string]any{"code": args[0], "valid": valid})
			} else {
				_, err = fmt.Fprintln(out, valid)
			}
			if err != nil {
				return err
			}
			if !valid {
				return fmt.Errorf("%w: %q", errInvalidCode, args[0])
			}
			return nil
		},
	}
}

func newFormatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "format CODE",
		Short: "Print a code in XXX-XXX-XXXX form (other input is echoed unchanged)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), digipin.FormatCode(args[0]))
			return err
		},
	}
}

func newBoundsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bounds",
		Short: "Print the bounding region as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeJSON(cmd.OutOrStdout(), digipin.RegionBounds)
		},
	}
}

func newCellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cell CODE",
		Short: "Print the GeoJSON outline of a code or code prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cell, err := digipin.DecodePrefix(args[0])
			if err != nil {
				return err
			}
			b, err := cellgeo.Marshal(cell, nil)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return err
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
