package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"snowbank/internal/config"
	"snowbank/internal/security"
	"snowbank/internal/ui"
	"snowbank/pkg/errors"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage stored connection secrets",
}

var credentialsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show where secrets are stored and how the password resolves",
	RunE:  runCredentialsStatus,
}

var credentialsStoreCmd = &cobra.Command{
	Use:   "store [name]",
	Short: "Store a secret (default: the Snowflake password)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCredentialsStore,
}

var credentialsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored secrets",
	RunE:  runCredentialsList,
}

var credentialsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a stored secret",
	Args:  cobra.ExactArgs(1),
	RunE:  runCredentialsDelete,
}

func init() {
	rootCmd.AddCommand(credentialsCmd)
	credentialsCmd.AddCommand(credentialsStatusCmd, credentialsStoreCmd, credentialsListCmd, credentialsDeleteCmd)
}

func credentialManager() (*security.CredentialManager, error) {
	cm, err := security.NewCredentialManager()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCredentialMissing, "Credential store unavailable")
	}
	return cm, nil
}

func runCredentialsStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cm, err := credentialManager()
	if err != nil {
		return err
	}

	store := "encrypted credential files"
	if cm.UsesKeyring() {
		store = "OS keyring"
	}
	ui.KeyValue("Store", store)

	source := "credential store"
	switch pw := cfg.Snowflake.Password; {
	case config.IsEncrypted(pw):
		source = "config file (ENC[...])"
	case pw != "":
		source = "plaintext (run 'snowbank encrypt-config')"
	}
	ui.KeyValue("Password", source)

	names, err := cm.List()
	if err != nil {
		return err
	}
	ui.KeyValue("Stored secrets", fmt.Sprint(len(names)))
	return nil
}

func runCredentialsStore(cmd *cobra.Command, args []string) error {
	name := config.PasswordKey
	if len(args) == 1 {
		name = args[0]
	}
	cm, err := credentialManager()
	if err != nil {
		return err
	}
	value, err := ui.Password(fmt.Sprintf("Value for %s:", name), "")
	if err != nil {
		return err
	}
	if value == "" {
		return errors.ValidationError("value", "", "must not be empty")
	}
	if err := cm.Store(name, value); err != nil {
		return errors.Wrap(err, errors.ErrCodeEncryptionFailed, "Failed to store secret").
			WithContext("name", name)
	}
	ui.ShowSuccess("Stored " + name)
	return nil
}

func runCredentialsList(cmd *cobra.Command, args []string) error {
	cm, err := credentialManager()
	if err != nil {
		return err
	}
	names, err := cm.List()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		ui.ShowInfo("No secrets stored")
		return nil
	}
	for _, n := range names {
		printf("  %s\n", n)
	}
	return nil
}

func runCredentialsDelete(cmd *cobra.Command, args []string) error {
	cm, err := credentialManager()
	if err != nil {
		return err
	}
	if err := cm.Delete(args[0]); err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to delete secret").
			WithContext("name", args[0])
	}
	ui.ShowSuccess("Deleted " + args[0])
	return nil
}
