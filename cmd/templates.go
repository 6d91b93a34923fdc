package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Shivanand-hulikatti/guild-roster/internal/printer"
	"github.com/Shivanand-hulikatti/guild-roster/internal/service"
)

// compositionFile is the YAML document read by "templates import".
//
//	guild: "1234"
//	owner: "5678"
//	compositions:
//	  - name: zvz
//	    roles: [Caller, Tank, Healer]
type compositionFile struct {
	Guild        string              `yaml:"guild"`
	Owner        string              `yaml:"owner"`
	Compositions []compositionRecord `yaml:"compositions"`
}

type compositionRecord struct {
	Name  string   `yaml:"name"`
	Roles []string `yaml:"roles"`
}

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage role compositions",
}

var templatesImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import compositions from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := readCompositionFile(args[0])
		if err != nil {
			return printer.Error("Cannot read composition file", err.Error())
		}

		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()

		imported := importCompositions(cmd.Context(), a.svc, file)
		if imported < len(file.Compositions) {
			return printer.Error("Some compositions were not imported",
				fmt.Sprintf("%d of %d imported", imported, len(file.Compositions)))
		}
		printer.Success("Imported %d compositions", imported)
		return nil
	},
}

func init() {
	templatesCmd.AddCommand(templatesImportCmd)
}

func readCompositionFile(path string) (*compositionFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file compositionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if file.Guild == "" {
		return nil, fmt.Errorf("%s: guild is required", path)
	}
	if len(file.Compositions) == 0 {
		return nil, fmt.Errorf("%s: no compositions", path)
	}
	return &file, nil
}

// importCompositions stores each composition, reporting failures and going
// on with the rest. Returns how many were stored.
func importCompositions(ctx context.Context, svc *service.RosterService, file *compositionFile) int {
	imported := 0
	for _, c := range file.Compositions {
		t, err := svc.ImportTemplate(ctx, file.Guild, c.Name, file.Owner, c.Roles)
		if err != nil {
			printer.Warning("%s: %v", c.Name, err)
			continue
		}
		printer.Template(t)
		imported++
	}
	return imported
}
