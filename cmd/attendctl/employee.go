package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newEmployeeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "employee",
		Short: "Manage enrolled employees",
	}

	enroll := &cobra.Command{
		Use:   "enroll",
		Short: "Enroll an employee from a photo",
		Long: `Send a photo to the face service and store the first detected face as
the employee's template.

Examples:
  attendctl employee enroll --name "Ayesha Khan" --department Finance --photo ayesha.jpg`,
		Args: cobra.NoArgs,
		RunE: runEmployeeEnroll,
	}
	enroll.Flags().String("name", "", "Employee name")
	enroll.Flags().String("department", "", "Department")
	enroll.Flags().String("photo", "", "Path to a JPEG, PNG, GIF or WebP photo")
	_ = enroll.MarkFlagRequired("name")
	_ = enroll.MarkFlagRequired("photo")

	list := &cobra.Command{
		Use:   "list",
		Short: "List employees",
		Args:  cobra.NoArgs,
		RunE:  runEmployeeList,
	}
	list.Flags().Bool("all", false, "Include removed employees")

	cmd.AddCommand(enroll, list)
	return cmd
}

func runEmployeeEnroll(cmd *cobra.Command, _ []string) error {
	name, _ := cmd.Flags().GetString("name")
	department, _ := cmd.Flags().GetString("department")
	photoPath, _ := cmd.Flags().GetString("photo")

	photo, err := os.ReadFile(photoPath)
	if err != nil {
		return fmt.Errorf("failed to read photo: %w", err)
	}

	ctx := context.Background()
	svc, db, err := openService(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	emp, err := svc.Enroll(ctx, name, department, photo)
	if err != nil {
		return fmt.Errorf("failed to enroll %s: %w", name, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Enrolled %s (id %d)\n", emp.Name, emp.ID)
	return nil
}

func runEmployeeList(cmd *cobra.Command, _ []string) error {
	all, _ := cmd.Flags().GetBool("all")

	ctx := context.Background()
	svc, db, err := openService(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	employees, err := svc.Employees(ctx, all)
	if err != nil {
		return err
	}
	if len(employees) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No employees enrolled.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDEPARTMENT\tACTIVE")
	for _, e := range employees {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\n", e.ID, e.Name, e.Department, e.Active)
	}
	return tw.Flush()
}
