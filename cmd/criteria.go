package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/steinik-group/rentscout/internal/model"
)

var criteriaCmd = &cobra.Command{
	Use:   "criteria",
	Short: "Inspect and edit the filter criteria",
}

var criteriaShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active criteria profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		c, err := env.Criteria.Load(ctx)
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(c)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

var criteriaSetFlags struct {
	areaMin           float64
	areaMax           float64
	priceMax          int64
	keepFirstFloor    bool
	excludeTopFloor   bool
	districts         []string
	rooms             []int
	excludeRenovation []string
	strictUnknown     bool
}

var criteriaSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update criteria fields; changes apply to the next sweep",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		c, err := env.Criteria.Load(ctx)
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("area-min") {
			c.AreaMin = criteriaSetFlags.areaMin
		}
		if flags.Changed("area-max") {
			c.AreaMax = criteriaSetFlags.areaMax
		}
		if flags.Changed("price-max") {
			c.PriceMax = criteriaSetFlags.priceMax
		}
		if flags.Changed("keep-first-floor") {
			c.ExcludeFirstFloor = !criteriaSetFlags.keepFirstFloor
		}
		if flags.Changed("exclude-top-floor") {
			c.ExcludeTopFloor = criteriaSetFlags.excludeTopFloor
		}
		if flags.Changed("districts") {
			c.DistrictAllowlist = criteriaSetFlags.districts
		}
		if flags.Changed("rooms") {
			c.RoomsAllowlist = criteriaSetFlags.rooms
		}
		if flags.Changed("exclude-renovation") {
			c.RenovationExclude = c.RenovationExclude[:0]
			for _, r := range criteriaSetFlags.excludeRenovation {
				c.RenovationExclude = append(c.RenovationExclude, model.Renovation(r))
			}
		}
		if flags.Changed("strict-unknown") {
			c.StrictUnknown = criteriaSetFlags.strictUnknown
		}

		if err := env.Criteria.Save(ctx, c); err != nil {
			return err
		}

		out, err := yaml.Marshal(c)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	f := criteriaSetCmd.Flags()
	f.Float64Var(&criteriaSetFlags.areaMin, "area-min", 0, "minimum total area, m²")
	f.Float64Var(&criteriaSetFlags.areaMax, "area-max", 0, "maximum total area, m²")
	f.Int64Var(&criteriaSetFlags.priceMax, "price-max", 0, "maximum price, RUB")
	f.BoolVar(&criteriaSetFlags.keepFirstFloor, "keep-first-floor", false, "accept first-floor listings")
	f.BoolVar(&criteriaSetFlags.excludeTopFloor, "exclude-top-floor", false, "reject top-floor listings")
	f.StringSliceVar(&criteriaSetFlags.districts, "districts", nil, "district allow-list, empty means all")
	f.IntSliceVar(&criteriaSetFlags.rooms, "rooms", nil, "room-count allow-list, empty means all")
	f.StringSliceVar(&criteriaSetFlags.excludeRenovation, "exclude-renovation", nil, "renovation tiers to reject (none, cosmetic, euro, designer, fine)")
	f.BoolVar(&criteriaSetFlags.strictUnknown, "strict-unknown", false, "treat unknown district or renovation as excluded")

	criteriaCmd.AddCommand(criteriaShowCmd)
	criteriaCmd.AddCommand(criteriaSetCmd)
	rootCmd.AddCommand(criteriaCmd)
}
