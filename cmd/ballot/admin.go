package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/Promptonauts/ballot/pkg/models"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newMigrateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(flags)
			if err != nil {
				return err
			}
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			logger.Info("database migrated", "path", cfg.Database.Path)
			return nil
		},
	}
}

func newRealmCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "realm",
		Short: "Manage tracked realms",
	}

	var name string
	track := &cobra.Command{
		Use:   "track ADDRESS",
		Short: "Start voting on proposals of a realm",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(flags)
			if err != nil {
				return err
			}
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			if name == "" {
				name = args[0]
			}
			return db.TrackRealm(cmd.Context(), &models.Realm{Address: args[0], Name: name})
		},
	}
	track.Flags().StringVar(&name, "name", "", "display name of the realm")

	untrack := &cobra.Command{
		Use:   "untrack ADDRESS",
		Short: "Stop voting on proposals of a realm",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(flags)
			if err != nil {
				return err
			}
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			return db.UntrackRealm(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(track, untrack)
	return cmd
}

// agentFile is the YAML layout accepted by `agent import`.
type agentFile struct {
	Agents []struct {
		ID              string         `yaml:"id"`
		Name            string         `yaml:"name"`
		Active          *bool          `yaml:"active"`
		WalletID        string         `yaml:"walletId"`
		SocialProfileID string         `yaml:"socialProfileId"`
		Config          map[string]any `yaml:"config"`
	} `yaml:"agents"`
}

func newAgentCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage voting agents",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "import FILE",
		Short: "Create or update agents from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(flags)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var file agentFile
			if err := yaml.Unmarshal(data, &file); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			for _, a := range file.Agents {
				configJSON := "{}"
				if len(a.Config) > 0 {
					raw, err := json.Marshal(a.Config)
					if err != nil {
						return fmt.Errorf("agent %s: encode config: %w", a.ID, err)
					}
					configJSON = string(raw)
				}
				agent := &models.Agent{
					ID:              a.ID,
					Name:            a.Name,
					Active:          a.Active == nil || *a.Active,
					WalletID:        a.WalletID,
					SocialProfileID: a.SocialProfileID,
					ConfigJSON:      configJSON,
				}
				if err := db.PutAgent(cmd.Context(), agent); err != nil {
					return err
				}
				logger.Info("agent imported", "agent_id", agent.ID, "name", agent.Name)
			}
			return nil
		},
	})
	return cmd
}

func newVotesCmd(flags *rootFlags) *cobra.Command {
	var (
		agentID string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "votes",
		Short: "List recorded vote outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(flags)
			if err != nil {
				return err
			}
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			votes, err := db.ListVotes(cmd.Context(), agentID, limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "AGENT\tPROPOSAL\tVOTE\tCONFIDENCE\tTX\tCREATED")
			for _, v := range votes {
				tx := "-"
				if v.TxSignature != nil {
					tx = *v.TxSignature
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\t%s\n",
					v.AgentID, v.ProposalAddress, v.Vote, v.Confidence, tx, v.CreatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "", "only show votes of this agent")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of rows")
	return cmd
}
