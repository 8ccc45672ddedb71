package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// OrgCmd manages organizations.
type OrgCmd struct {
	Create OrgCreateCmd `cmd:"" help:"Create an organization and its admin"`
	Get    OrgGetCmd    `cmd:"" help:"Show an organization"`
	Update OrgUpdateCmd `cmd:"" help:"Rename your organization and replace its admin credentials"`
	Delete OrgDeleteCmd `cmd:"" help:"Delete your organization"`
}

type OrgCreateCmd struct {
	Name     string `arg:"" help:"Organization name"`
	Email    string `help:"Admin email" required:""`
	Password string `help:"Admin password" required:"" env:"ORGMGR_PASSWORD"`
}

func (o *OrgCreateCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.newClient()
	if err != nil {
		return err
	}

	view, err := c.CreateOrg(ctx, o.Name, o.Email, o.Password)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}

	fmt.Println("Organization created")
	printOrg(os.Stdout, view)
	return nil
}

type OrgGetCmd struct {
	Name string `arg:"" help:"Organization name"`
}

func (o *OrgGetCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.newClient()
	if err != nil {
		return err
	}

	view, err := c.GetOrg(ctx, o.Name)
	if err != nil {
		return fmt.Errorf("failed to get organization: %w", err)
	}

	printOrg(os.Stdout, view)
	return nil
}

type OrgUpdateCmd struct {
	Name     string `arg:"" help:"New organization name"`
	Email    string `help:"New admin email" required:""`
	Password string `help:"New admin password" required:"" env:"ORGMGR_PASSWORD"`
}

func (o *OrgUpdateCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.authedClient()
	if err != nil {
		return err
	}

	msg, err := c.UpdateOrg(ctx, o.Name, o.Email, o.Password)
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}

	fmt.Println(msg)
	fmt.Println("The stored token stays valid; log in with the new credentials once it expires.")
	return nil
}

type OrgDeleteCmd struct {
	Name string `arg:"" help:"Organization name"`
	Yes  bool   `help:"Skip the confirmation prompt" short:"y"`
}

func (o *OrgDeleteCmd) Run(ctx context.Context, globals *Globals) error {
	if !o.Yes {
		fmt.Printf("Delete organization %q and all of its data? Type the name to confirm: ", o.Name)
		answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil || strings.TrimSpace(answer) != o.Name {
			return errors.New("aborted")
		}
	}

	c, err := globals.authedClient()
	if err != nil {
		return err
	}

	msg, err := c.DeleteOrg(ctx, o.Name)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}

	fmt.Println(msg)
	return nil
}
