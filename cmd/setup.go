package cmd

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"snowbank/internal/config"
	"snowbank/internal/landing"
	"snowbank/internal/security"
	"snowbank/internal/ui"
	"snowbank/pkg/models"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Initial configuration setup",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

type snowflakeAnswers struct {
	Account   string
	Username  string
	Password  string
	Role      string
	Warehouse string
	Database  string
}

func runSetup(cmd *cobra.Command, args []string) error {
	ui.ShowHeader("SnowBank setup")

	if config.Exists() {
		overwrite := false
		prompt := &survey.Confirm{
			Message: "Configuration already exists. Do you want to overwrite it?",
			Default: false,
		}
		if err := survey.AskOne(prompt, &overwrite); err != nil {
			return err
		}
		if !overwrite {
			ui.ShowInfo("Setup cancelled.")
			return nil
		}
	}

	cfg := models.Defaults()

	printf("\nSnowflake connection\n--------------------\n")
	questions := []*survey.Question{
		{
			Name:     "account",
			Prompt:   &survey.Input{Message: "Snowflake Account (e.g., xy12345.eu-central-1):"},
			Validate: survey.Required,
		},
		{
			Name:     "username",
			Prompt:   &survey.Input{Message: "Username:"},
			Validate: survey.Required,
		},
		{
			Name:     "password",
			Prompt:   &survey.Password{Message: "Password:"},
			Validate: survey.Required,
		},
		{
			Name:     "role",
			Prompt:   &survey.Input{Message: "Role:", Default: "SYSADMIN"},
			Validate: survey.Required,
		},
		{
			Name:     "warehouse",
			Prompt:   &survey.Input{Message: "Warehouse:", Default: "COMPUTE_WH"},
			Validate: survey.Required,
		},
		{
			Name:     "database",
			Prompt:   &survey.Input{Message: "Target database:", Default: cfg.Snowflake.Database},
			Validate: survey.Required,
		},
	}
	var answers snowflakeAnswers
	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}
	applySnowflakeAnswers(cfg, answers)

	if err := storePassword(cfg, answers.Password); err != nil {
		return err
	}

	printf("\nLanding\n-------\n")
	target, err := ui.Select("Where should generated files be landed?",
		[]string{landing.TargetStage, landing.TargetLocal, landing.TargetS3, landing.TargetGCS}, landing.TargetStage)
	if err != nil {
		return err
	}
	cfg.Landing.Target = target
	switch target {
	case landing.TargetS3:
		if cfg.Landing.S3.Bucket, err = ui.Input("S3 bucket:", "", ""); err != nil {
			return err
		}
		if cfg.Landing.S3.Region, err = ui.Input("AWS region:", "eu-central-1", ""); err != nil {
			return err
		}
	case landing.TargetGCS:
		if cfg.Landing.GCS.Bucket, err = ui.Input("GCS bucket:", "", ""); err != nil {
			return err
		}
	case landing.TargetStage:
		if cfg.Landing.ExecuteTasks, err = ui.Confirm("Run the RAW load tasks after upload?", true); err != nil {
			return err
		}
	}

	if err := config.Save(cfg); err != nil {
		return err
	}

	printf("\n")
	ui.ShowSuccess("Configuration saved to " + config.GetConfigFile())
	printf("\nNext steps:\n")
	printf("  snowbank plan        review the deployment order\n")
	printf("  snowbank deploy      create the warehouse objects\n")
	printf("  snowbank generate    write synthetic data\n")
	printf("  snowbank load        land it in the RAW stages\n")
	return nil
}

func applySnowflakeAnswers(cfg *models.Config, a snowflakeAnswers) {
	cfg.Snowflake.Account = a.Account
	cfg.Snowflake.Username = a.Username
	cfg.Snowflake.Role = a.Role
	cfg.Snowflake.Warehouse = a.Warehouse
	cfg.Snowflake.Database = a.Database
}

// storePassword keeps the password in the OS keyring or the encrypted
// credential file. When neither works it is written to the config as ENC[...].
func storePassword(cfg *models.Config, password string) error {
	cm, err := security.NewCredentialManager()
	if err == nil {
		if err = cm.Store(config.PasswordKey, password); err == nil {
			where := "encrypted credential file"
			if cm.UsesKeyring() {
				where = "OS keyring"
			}
			ui.ShowInfo(fmt.Sprintf("Password stored in the %s", where))
			cfg.Snowflake.Password = ""
			return nil
		}
	}
	ui.ShowWarning(fmt.Sprintf("Credential store unavailable (%v); encrypting the password into the config file", err))

	enc, err := config.EncryptPassword(password)
	if err != nil {
		return err
	}
	cfg.Snowflake.Password = enc
	return nil
}
