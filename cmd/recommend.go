package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmercadier/chargeshare/core/model"
	"github.com/jmercadier/chargeshare/core/recommend"
	"github.com/jmercadier/chargeshare/core/reservation"
	"github.com/jmercadier/chargeshare/infra/logger"
)

var requestPath string

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Rank chargers for a request file and print the result",
	RunE:  runRecommend,
}

func init() {
	recommendCmd.Flags().StringVarP(&requestPath, "request", "r", "request.json", "ranking request file")
	rootCmd.AddCommand(recommendCmd)
}

// recommendRequest is the input file format. The reservations seed the
// busy calendar the gap search runs over.
type recommendRequest struct {
	UserLocation model.Coordinates   `json:"user_location"`
	Vehicle      model.Vehicle       `json:"vehicle"`
	Chargers     []model.Charger     `json:"chargers"`
	Reservations []model.Reservation `json:"reservations"`
	Weights      recommend.Weights   `json:"weights"`
	Mode         recommend.Mode      `json:"mode"`
	// TargetPercent applies in target_charge mode.
	TargetPercent float64 `json:"target_percent,omitempty"`
	// TimeBudgetMinutes applies in time_budget mode.
	TimeBudgetMinutes int `json:"time_budget_minutes,omitempty"`
}

func runRecommend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(requestPath)
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	var req recommendRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}

	ctx := context.Background()
	store := reservation.NewMemoryStore()
	for _, res := range req.Reservations {
		if _, err := store.Create(ctx, res); err != nil {
			return fmt.Errorf("seed reservation: %w", err)
		}
	}

	ranker := recommend.NewRanker(cfg.Recommend, store, logger.New("recommend-command"))
	result, err := ranker.Rank(ctx, recommend.Request{
		UserLocation:  req.UserLocation,
		Vehicle:       req.Vehicle,
		Chargers:      req.Chargers,
		Weights:       req.Weights,
		Mode:          req.Mode,
		TargetPercent: req.TargetPercent,
		TimeBudget:    time.Duration(req.TimeBudgetMinutes) * time.Minute,
	})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
