package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/noah-isme/doc-control-api/internal/models"
	"github.com/noah-isme/doc-control-api/internal/service"
	appErrors "github.com/noah-isme/doc-control-api/pkg/errors"
)

type sample struct {
	Name         string `json:"name"`
	FileType     string `json:"file_type"`
	ProductModel string `json:"product_model"`
	Importance   string `json:"importance"`
	Expect       string `json:"expect"`
}

type config struct {
	Samples []sample `json:"samples"`
}

type outcome struct {
	Sample   sample
	Selected string
	Match    bool
	Error    error
}

// staticFlows serves parsed definitions in selection order.
type staticFlows []models.ApprovalFlow

func (s staticFlows) ListEnabled(context.Context) ([]models.ApprovalFlow, error) {
	enabled := make([]models.ApprovalFlow, 0, len(s))
	for _, flow := range s {
		if flow.Enabled {
			enabled = append(enabled, flow)
		}
	}
	return enabled, nil
}

func main() {
	var (
		flowsDir    string
		samplesPath string
	)

	flag.StringVar(&flowsDir, "flows", "flows", "Directory of approval flow definitions")
	flag.StringVar(&samplesPath, "samples", filepath.Join("scripts", "flow_check", "samples.json"), "Path to JSON samples file")
	flag.Parse()

	files, err := service.LoadFlowDir(flowsDir)
	if err != nil {
		log.Fatalf("invalid flow definitions: %v", err)
	}
	if len(files) == 0 {
		log.Fatalf("no flow definitions found in %s", flowsDir)
	}

	flows := make(staticFlows, 0, len(files))
	for _, f := range files {
		flow := f.Definition.ToModel()
		flow.ID = f.Path
		flows = append(flows, *flow)
	}
	sort.SliceStable(flows, func(i, j int) bool { return flows[i].Position < flows[j].Position })
	printFlows(flows)

	samples, err := loadSamples(samplesPath)
	if err != nil {
		log.Fatalf("failed to load samples: %v", err)
	}

	selector := service.NewFlowSelector(flows, nil)
	var (
		outcomes   []outcome
		mismatches int
	)
	for _, s := range samples {
		out := check(selector, s)
		if !out.Match {
			mismatches++
		}
		outcomes = append(outcomes, out)
	}

	printReport(outcomes)

	fmt.Printf("Flows: %d, Samples: %d, Mismatches: %d\n", len(flows), len(samples), mismatches)
	if mismatches > 0 {
		os.Exit(1)
	}
}

func loadSamples(path string) ([]sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Samples) == 0 {
		return nil, fmt.Errorf("no samples defined in %s", path)
	}
	return cfg.Samples, nil
}

// check expects an empty Expect to mean no flow applies.
func check(selector *service.FlowSelector, s sample) outcome {
	out := outcome{Sample: s}
	doc := &models.Document{FileType: s.FileType, ProductModel: s.ProductModel, Importance: s.Importance}
	flow, err := selector.Select(context.Background(), doc)
	if err != nil {
		if errors.Is(err, appErrors.ErrApprovalFlowNotFound) {
			out.Match = s.Expect == ""
			return out
		}
		out.Error = err
		return out
	}
	out.Selected = flow.Code
	out.Match = flow.Code == s.Expect
	return out
}

func printFlows(flows staticFlows) {
	fmt.Println("Approval Flows")
	fmt.Println("==============")
	for _, flow := range flows {
		fmt.Printf("%-20s position=%-4d enabled=%-5t steps=%d (%s)\n", flow.Code, flow.Position, flow.Enabled, len(flow.Steps), flow.ID)
	}
	fmt.Println()
}

func printReport(results []outcome) {
	fmt.Println("Flow Selection Report")
	fmt.Println("=====================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if !res.Match {
			status = "DIFF"
		}
		selected := res.Selected
		if selected == "" {
			selected = "<none>"
		}
		fmt.Printf("[%s] %s\n", status, res.Sample.Name)
		fmt.Printf("  Document: type=%s model=%s importance=%s\n", res.Sample.FileType, res.Sample.ProductModel, res.Sample.Importance)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
		} else {
			fmt.Printf("  Selected: %s | Expected: %s\n", selected, res.Sample.Expect)
		}
	}
}
