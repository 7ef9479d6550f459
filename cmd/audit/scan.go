package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	appaudit "github.com/bryanwahyu/codeguardian/internal/application/audit"
	domain "github.com/bryanwahyu/codeguardian/internal/domain/audit"
	"github.com/bryanwahyu/codeguardian/internal/domain/catalog"
	aiclient "github.com/bryanwahyu/codeguardian/internal/infra/ai/openai"
	"github.com/bryanwahyu/codeguardian/internal/infra/knowledge"
)

var (
	scanLanguage string
	scanJSON     bool
	scanWithAI   bool
	scanModel    string
	catalogPath  string
)

var scanCmd = &cobra.Command{
	Use:   "scan [file]",
	Short: "Scan a source file for vulnerabilities",
	Long: `Scan runs the static pattern matcher over a source file and prints a
security report. With --ai and an OPENAI_API_KEY in the environment the
findings are additionally verified by the generative collaborator.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		cat, err := loadCatalog()
		if err != nil {
			return err
		}

		svc := &appaudit.Service{
			Catalog:   cat,
			Retriever: knowledge.NewMemoryRetriever(knowledge.DefaultEntries()),
			Clock:     appaudit.SystemClock{},
			Policy:    domain.DefaultPolicy(),
		}

		if scanWithAI {
			key := os.Getenv("OPENAI_API_KEY")
			if key == "" {
				return fmt.Errorf("--ai requires OPENAI_API_KEY in the environment")
			}
			svc.Verifier = aiclient.NewClient(key, scanModel)
		}

		lang := scanLanguage
		if lang == "" {
			lang = languageFromExt(args[0])
		}

		report, err := svc.Analyze(cmd.Context(), domain.ScanRequest{
			Code:     string(code),
			Language: lang,
			FileName: filepath.Base(args[0]),
		})
		if err != nil {
			return err
		}

		if scanJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		printReport(cmd, report)
		return nil
	},
}

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "List the vulnerability signatures in the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := loadCatalog()
		if err != nil {
			return err
		}
		for _, p := range cat.Patterns() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-28s %-22s %-8s %s\n",
				p.ID, p.Category, p.Severity, p.CWEID)
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVarP(&scanLanguage, "language", "l", "", "source language (default: from file extension)")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "print the full report as JSON")
	scanCmd.Flags().BoolVar(&scanWithAI, "ai", false, "verify findings with the AI collaborator")
	scanCmd.Flags().StringVar(&scanModel, "model", "", "override the OpenAI model")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "path to a pattern catalog YAML (default: built-in)")
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(patternsCmd)
}

func loadCatalog() (*catalog.Catalog, error) {
	if catalogPath == "" {
		return catalog.Default(), nil
	}
	data, err := os.ReadFile(catalogPath)
	if err != nil {
		return nil, err
	}
	return catalog.Parse(data)
}

func languageFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		return "python"
	case ".js", ".jsx":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".go":
		return "go"
	case ".java":
		return "java"
	case ".php":
		return "php"
	case ".rb":
		return "ruby"
	}
	return "auto"
}

func printReport(cmd *cobra.Command, rep *domain.SecurityReport) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "File:     %s\n", rep.FileName)
	fmt.Fprintf(out, "Language: %s\n", rep.Language)
	fmt.Fprintf(out, "Score:    %d/100 (risk: %s)\n", rep.SecurityScore, rep.RiskLevel)
	if rep.AIEnhanced {
		fmt.Fprintln(out, "Mode:     static + AI verification")
	} else {
		fmt.Fprintln(out, "Mode:     static-only")
	}
	fmt.Fprintln(out)

	if len(rep.Findings) == 0 {
		fmt.Fprintln(out, "No vulnerabilities found.")
	}
	for _, f := range rep.Findings {
		lines := ""
		if len(f.LineNumbers) > 0 {
			parts := make([]string, len(f.LineNumbers))
			for i, n := range f.LineNumbers {
				parts[i] = fmt.Sprintf("%d", n)
			}
			lines = " (line " + strings.Join(parts, ", ") + ")"
		}
		fmt.Fprintf(out, "[%s] %s%s\n", strings.ToUpper(string(f.Severity)), f.Title, lines)
		if f.CWEID != "" {
			fmt.Fprintf(out, "    %s  %s\n", f.CWEID, f.Category)
		}
		if f.Description != "" {
			fmt.Fprintf(out, "    %s\n", f.Description)
		}
		if f.Remediation != "" {
			fmt.Fprintf(out, "    Fix: %s\n", f.Remediation)
		}
		fmt.Fprintln(out)
	}

	if len(rep.Strengths) > 0 {
		fmt.Fprintln(out, "Strengths:")
		for _, s := range rep.Strengths {
			fmt.Fprintf(out, "  + %s\n", s)
		}
		fmt.Fprintln(out)
	}
	if len(rep.Recommendations) > 0 {
		fmt.Fprintln(out, "Recommendations:")
		for _, r := range rep.Recommendations {
			fmt.Fprintf(out, "  - %s\n", r)
		}
	}

	fmt.Fprintf(out, "\nCompleted in %s\n", time.Duration(rep.DurationMS)*time.Millisecond)
}
