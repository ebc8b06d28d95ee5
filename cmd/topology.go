package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MDEGroup/satellite-interoperability/sim"
	"github.com/MDEGroup/satellite-interoperability/sim/models"
)

// OrderEntry is one row of the execution order report.
type OrderEntry struct {
	Name         string `yaml:"name"`
	Type         string `yaml:"type"`
	Mode         string `yaml:"mode"`
	NestingLevel int    `yaml:"nesting_level"`
	NX           int    `yaml:"nx"`
	NU           int    `yaml:"nu"`
	NY           int    `yaml:"ny"`
	RTAddress    int    `yaml:"rt_address,omitempty"`
}

var topologyScenarioPath string

var topologyCmd = &cobra.Command{
	Use:   "topology",
	Short: "Analyse a scenario and print the execution order",
	Long:  "Build the instances and links of a scenario, run the topology analysis and write the execution order as YAML to stdout. Models are not initialized.",
	Run: func(cmd *cobra.Command, args []string) {
		sc, err := LoadScenario(topologyScenarioPath)
		if err != nil {
			logrus.Fatalf("Failed to load scenario %s: %v", topologyScenarioPath, err)
		}
		order, err := executionOrder(sc)
		if err != nil {
			logrus.Fatalf("Topology analysis failed: %v", err)
		}
		writeOrder(os.Stdout, order)
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the model types a scenario can instantiate",
	Run: func(cmd *cobra.Command, args []string) {
		for _, t := range models.Types() {
			fmt.Println(t)
		}
	},
}

// executionOrder builds sc on a throwaway world and reports the order the
// scheduler would use.
func executionOrder(sc *Scenario) ([]OrderEntry, error) {
	w := sim.NewWorld(sim.Options{LogWriter: io.Discard, DisablePublish: true, Listener: consoleListener})
	defer w.DestroyAll()
	if err := sc.Build(w); err != nil {
		return nil, err
	}
	types := make(map[string]string, len(sc.Instances))
	for _, in := range sc.Instances {
		types[in.Name] = in.Type
	}
	var out []OrderEntry
	for _, inst := range w.Order() {
		out = append(out, OrderEntry{
			Name:         inst.Name(),
			Type:         types[inst.Name()],
			Mode:         inst.Mode().String(),
			NestingLevel: inst.NestingLevel(),
			NX:           inst.NX(),
			NU:           inst.NU(),
			NY:           inst.NY(),
			RTAddress:    inst.RTAddress(),
		})
	}
	return out, nil
}

func writeOrder(out io.Writer, order []OrderEntry) {
	data, err := yaml.Marshal(order)
	if err != nil {
		logrus.Fatalf("YAML marshal failed: %v", err)
	}
	fmt.Fprint(out, string(data))
}

func init() {
	topologyCmd.Flags().StringVar(&topologyScenarioPath, "scenario", "", "YAML scenario to analyse")
	_ = topologyCmd.MarkFlagRequired("scenario")

	rootCmd.AddCommand(topologyCmd)
	rootCmd.AddCommand(modelsCmd)
}
