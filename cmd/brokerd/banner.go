package main

import (
	"os"

	"github.com/common-nighthawk/go-figure"
	"github.com/jedib0t/go-pretty/v6/table"

	"brokerd/config"
)

func printBanner(cfg *config.Config) {
	figure.NewFigure("brokerd", "", true).Print()
	print("\n")

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Key", "Value"})

	brokerURL, _ := cfg.Broker.Properties.Property(config.PropBrokerURL)
	federatedURL, _ := cfg.Broker.Properties.Property(config.PropFederatedBrokerURL)

	t.AppendRows([]table.Row{
		{config.PropBrokerURL, brokerURL},
		{config.PropFederatedBrokerURL, federatedURL},
		{"runtime.home", cfg.Runtime.Home},
		{"broker.startTimeout", cfg.Broker.StartTimeout},
		{"broker.stopTimeout", cfg.Broker.StopTimeout},
		{"broker.federationRequired", cfg.Broker.FederationRequired},
		{"broker.verifyConnectors", cfg.Broker.VerifyConnectors},
		{"logging.level", cfg.Logging.Level},
		{"metrics.enabled", cfg.Metrics.Enabled},
		{"metrics.address", cfg.Metrics.Address},
	})
	t.SetStyle(table.StyleLight)
	t.Render()
	print("\n")
}
