package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/skyyMo/skynet-ai/internal/domain"
)

const jiraTokenEnv = "JIRA_API_TOKEN"

// DeployOptions holds options for the deploy command.
type DeployOptions struct {
	*RootOptions
	BaseURL   string
	Email     string
	Token     string
	Project   string
	IssueType string
}

// NewDeployCommand creates the deploy command.
func NewDeployCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeployOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "deploy <story-id>",
		Short: "Create a Jira issue from a stored story",
		Long: `Create a Jira issue from a stored story.

Credentials and the project are verified before anything is created. A story
that already carries an issue key is refused. The token may also come from
$JIRA_API_TOKEN.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.BaseURL, "base-url", "", "Jira site URL, e.g. https://acme.atlassian.net (required)")
	cmd.Flags().StringVar(&opts.Email, "email", "", "Jira account email (required)")
	cmd.Flags().StringVar(&opts.Token, "token", "", "Jira API token")
	cmd.Flags().StringVar(&opts.Project, "project", "", "Jira project key (required)")
	cmd.Flags().StringVar(&opts.IssueType, "issue-type", "", "issue type override (default: the story's type)")
	_ = cmd.MarkFlagRequired("base-url")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

func runDeploy(opts *DeployOptions, cmd *cobra.Command, storyID string) error {
	token := opts.Token
	if token == "" {
		token = os.Getenv(jiraTokenEnv)
	}

	application, _, err := opts.openApp(cmd.Context(), cmd, false)
	if err != nil {
		return err
	}
	defer application.Close()

	result, err := application.Deployments.Deploy(cmd.Context(), storyID, domain.IssueTarget{
		BaseURL:    opts.BaseURL,
		Email:      opts.Email,
		APIToken:   token,
		ProjectKey: opts.Project,
		IssueType:  opts.IssueType,
	})
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), result)
}
