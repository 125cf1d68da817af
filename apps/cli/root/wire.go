package root

import (
	"github.com/gradnet-io/gradnet/apps/cli/cmd/auth"
	"github.com/gradnet-io/gradnet/apps/cli/cmd/bootstrap"
	"github.com/gradnet-io/gradnet/apps/cli/cmd/schema"
	tenantcmd "github.com/gradnet-io/gradnet/apps/cli/cmd/tenant"
)

func init() {
	Root().AddCommand(auth.Command())
	Root().AddCommand(bootstrap.Command())
	Root().AddCommand(schema.Command())
	Root().AddCommand(tenantcmd.Command())
}
