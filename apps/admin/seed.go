package main

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/catalog"
	"github.com/unistock/stockroom/core/org"
)

// seedFile is the reference data loaded by the seed command.
type seedFile struct {
	Departments []seedDepartment `yaml:"departments"`
	Suppliers   []seedSupplier   `yaml:"suppliers"`
	Categories  []seedCategory   `yaml:"categories"`
}

type seedDepartment struct {
	Name        string       `yaml:"name"`
	Code        string       `yaml:"code"`
	Description string       `yaml:"description"`
	Offices     []seedOffice `yaml:"offices"`
}

type seedOffice struct {
	Name     string `yaml:"name"`
	Location string `yaml:"location"`
}

type seedSupplier struct {
	Name        string `yaml:"name"`
	ContactName string `yaml:"contact_name"`
	Email       string `yaml:"email"`
	Phone       string `yaml:"phone"`
	Address     string `yaml:"address"`
}

type seedCategory struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Items       []seedItem `yaml:"items"`
}

type seedItem struct {
	Name         string `yaml:"name"`
	Unit         string `yaml:"unit"`
	Description  string `yaml:"description"`
	ReorderLevel int    `yaml:"reorder_level"`
}

// SeedStats counts the records created by a seed run; existing ones are skipped.
type SeedStats struct {
	Departments, Offices, Suppliers, Categories, Items, Skipped int
}

func (cli *commandLine) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed FILE",
		Short: "Load departments, offices, suppliers, categories and items from a YAML file",
		Long: `Load departments, offices, suppliers, categories and items from a YAML file.

Records that already exist are skipped, so the same file can be loaded several times. Example:

  departments:
    - name: Computer Science
      code: CS
      offices:
        - name: Lab 1
          location: Block A
  suppliers:
    - name: Office Supplies Ltd
      email: sales@osl.cd
  categories:
    - name: Stationery
      items:
        - name: A4 paper
          unit: ream
          reorder_level: 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			//goland:noinspection GoUnhandledErrorResult
			defer f.Close()

			stats, err := cli.seed(cmd.Context(), f)
			if err != nil {
				return err
			}
			cli.printf("created %d departments, %d offices, %d suppliers, %d categories, %d items (%d skipped)\n",
				stats.Departments, stats.Offices, stats.Suppliers, stats.Categories, stats.Items, stats.Skipped)
			return nil
		},
	}
}

func (cli *commandLine) seed(ctx context.Context, r io.Reader) (SeedStats, error) {
	var data seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&data); err != nil && err != io.EOF {
		return SeedStats{}, errors.Wrap(err, "decoding seed file")
	}

	var stats SeedStats
	skip := func(kind, name string, err error) error {
		var vErr *core.ValidationError
		if !errors.As(err, &vErr) {
			return err
		}
		cli.logger.Warn("skipped", zap.String("kind", kind), zap.String("name", name), zap.Error(err))
		stats.Skipped++
		return nil
	}

	for _, d := range data.Departments {
		nd := org.NewDepartment{Name: d.Name, Code: d.Code, Description: d.Description}
		if err := nd.Validate(cli.validate); err != nil {
			return stats, errors.Wrapf(err, "department %q", nd.Name)
		}
		dept, err := cli.findDepartment(ctx, nd.Code)
		if err != nil {
			return stats, err
		}
		if dept.ID == "" {
			if dept, err = cli.orgSvc.CreateDepartment(ctx, nd); err != nil {
				return stats, errors.Wrapf(err, "creating department %q", nd.Name)
			}
			stats.Departments++
		} else {
			stats.Skipped++
		}

		for _, o := range d.Offices {
			no := org.NewOffice{DepartmentID: dept.ID, Name: o.Name, Location: o.Location}
			if err := no.Validate(cli.validate); err != nil {
				return stats, errors.Wrapf(err, "office %q", no.Name)
			}
			if _, err := cli.orgSvc.CreateOffice(ctx, no); err != nil {
				if err = skip("office", no.Name, err); err != nil {
					return stats, errors.Wrapf(err, "creating office %q", no.Name)
				}
				continue
			}
			stats.Offices++
		}
	}

	for _, sup := range data.Suppliers {
		ns := catalog.NewSupplier{
			Name:        sup.Name,
			ContactName: sup.ContactName,
			Email:       sup.Email,
			Phone:       sup.Phone,
			Address:     sup.Address,
		}
		if err := ns.Validate(cli.validate); err != nil {
			return stats, errors.Wrapf(err, "supplier %q", ns.Name)
		}
		if _, err := cli.catSvc.CreateSupplier(ctx, ns); err != nil {
			if err = skip("supplier", ns.Name, err); err != nil {
				return stats, errors.Wrapf(err, "creating supplier %q", ns.Name)
			}
			continue
		}
		stats.Suppliers++
	}

	for _, c := range data.Categories {
		nc := catalog.NewCategory{Name: c.Name, Description: c.Description}
		if err := nc.Validate(cli.validate); err != nil {
			return stats, errors.Wrapf(err, "category %q", nc.Name)
		}
		cat, err := cli.findCategory(ctx, nc.Name)
		if err != nil {
			return stats, err
		}
		if cat.ID == "" {
			if cat, err = cli.catSvc.CreateCategory(ctx, nc); err != nil {
				return stats, errors.Wrapf(err, "creating category %q", nc.Name)
			}
			stats.Categories++
		} else {
			stats.Skipped++
		}

		for _, it := range c.Items {
			ni := catalog.NewItem{
				CategoryID:   cat.ID,
				Name:         it.Name,
				Unit:         it.Unit,
				Description:  it.Description,
				ReorderLevel: it.ReorderLevel,
			}
			if err := ni.Validate(cli.validate); err != nil {
				return stats, errors.Wrapf(err, "item %q", ni.Name)
			}
			if _, err := cli.catSvc.CreateItem(ctx, ni); err != nil {
				if err = skip("item", ni.Name, err); err != nil {
					return stats, errors.Wrapf(err, "creating item %q", ni.Name)
				}
				continue
			}
			stats.Items++
		}
	}
	return stats, nil
}

// findDepartment returns the department having code, or a zero Department.
func (cli *commandLine) findDepartment(ctx context.Context, code string) (org.Department, error) {
	page, err := cli.orgSvc.QueryDepartments(ctx, org.DepartmentFilter{Search: code}, nil, core.NewPagination(1, core.MaxPageSize))
	if err != nil {
		return org.Department{}, errors.Wrap(err, "querying departments")
	}
	for _, dept := range page.Results {
		if strings.EqualFold(dept.Code, code) {
			return dept, nil
		}
	}
	return org.Department{}, nil
}

// findCategory returns the category named name, or a zero Category.
func (cli *commandLine) findCategory(ctx context.Context, name string) (catalog.Category, error) {
	page, err := cli.catSvc.QueryCategories(ctx, catalog.CategoryFilter{Search: name}, nil, core.NewPagination(1, core.MaxPageSize))
	if err != nil {
		return catalog.Category{}, errors.Wrap(err, "querying categories")
	}
	for _, cat := range page.Results {
		if strings.EqualFold(cat.Name, name) {
			return cat, nil
		}
	}
	return catalog.Category{}, nil
}
