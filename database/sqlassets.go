package sqlassets

import _ "embed"

//go:embed schema/platform/global_users.sql
var GlobalUsersSQL string

//go:embed schema/platform/tenants.sql
var TenantsSQL string

//go:embed schema/platform/user_tenants.sql
var UserTenantsSQL string

//go:embed schema/platform/audit_trail.sql
var AuditTrailSQL string

//go:embed schema/tenant_space/members.sql
var MembersSQL string
