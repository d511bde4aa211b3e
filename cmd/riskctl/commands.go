package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/synaptica-ai/healthrisk/pkg/common/config"
	"github.com/synaptica-ai/healthrisk/pkg/common/models"
	"github.com/synaptica-ai/healthrisk/pkg/gateway/httpclient"
	"github.com/synaptica-ai/healthrisk/pkg/serving/artifacts"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "riskctl",
		Short:        "Inspect artifact bundles and score health profiles",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("artifacts", config.Load().ArtifactDir, "artifact bundle directory")
	root.PersistentFlags().String("server", "", "serving-service base URL; scores remotely when set")
	root.PersistentFlags().Duration("timeout", 5*time.Second, "request timeout for --server")
	root.AddCommand(newValidateCommand(), newScoreCommand(), newModelsCommand())
	return root
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load a bundle and report whether it is consistent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, _ := cmd.Flags().GetString("artifacts")
			bundle, err := artifacts.Load(dir)
			if err != nil {
				return fmt.Errorf("bundle %s rejected: %w", dir, err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "version:  %s\n", bundle.Info.Version)
			fmt.Fprintf(out, "checksum: %s\n", bundle.Info.Checksum)
			fmt.Fprintf(out, "columns:  %d\n", len(bundle.Info.Columns))
			for _, m := range bundle.Info.Models {
				fmt.Fprintf(out, "model:    %-15s %-9s %s\n", m.Category, m.Type, m.Algorithm)
			}
			return nil
		},
	}
}

func newScoreCommand() *cobra.Command {
	var profilePath string
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a JSON health profile locally or against a running service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := readProfile(cmd, profilePath)
			if err != nil {
				return err
			}

			var resp *models.PredictionResponse
			if server, _ := cmd.Flags().GetString("server"); server != "" {
				resp, err = remoteClient(cmd).Predict(cmd.Context(), raw)
			} else {
				dir, _ := cmd.Flags().GetString("artifacts")
				resp, err = scoreLocal(dir, raw)
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
	cmd.Flags().StringVar(&profilePath, "profile", "-", "profile JSON file, - for stdin")
	return cmd
}

func newModelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Show the bundle active on a running service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if server, _ := cmd.Flags().GetString("server"); server == "" {
				return errors.New("--server is required")
			}
			info, err := remoteClient(cmd).Models(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		},
	}
}

func readProfile(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(filepath.Clean(path))
}

func remoteClient(cmd *cobra.Command) *httpclient.RiskClient {
	server, _ := cmd.Flags().GetString("server")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return httpclient.NewRiskClient(server, timeout)
}

func scoreLocal(dir string, raw []byte) (*models.PredictionResponse, error) {
	bundle, err := artifacts.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("bundle %s rejected: %w", dir, err)
	}
	var req models.PredictRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, models.NewValidationError(err)
	}
	profile, err := req.ToProfile()
	if err != nil {
		return nil, err
	}
	card, err := bundle.Predict(profile)
	if err != nil {
		return nil, err
	}
	return &models.PredictionResponse{ModelVersion: bundle.Info.Version, Risks: card}, nil
}
