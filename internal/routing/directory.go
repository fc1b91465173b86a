package routing

import (
	"context"
	"fmt"
	"strings"

	"pbx-control/internal/fsxml"
	"pbx-control/internal/pbx"
)

// dialString lets bridge "user/<n>@<domain>" reach the registered contact.
const dialString = "{^^:sip_invite_domain=${dialed_domain}:presence_id=${dialed_user}@${dialed_domain}}${sofia_contact(*/${dialed_user}@${dialed_domain})}"

// CompileDirectory renders the SIP credential registry for domain.
// Unknown or non-operational domains yield an empty directory.
func (c *Compiler) CompileDirectory(ctx context.Context, domain string) (*fsxml.Document, error) {
	domain = strings.TrimSpace(domain)
	log := c.logger(ctx).With("domain", domain)

	if domain == "" {
		c.observe(fsxml.SectionDirectory, OutcomeEmpty)
		return fsxml.EmptyDirectory(), nil
	}

	tenant, err := c.Store.FindOperationalTenantByDomain(ctx, domain)
	if err != nil {
		log.Error("tenant lookup failed", "error", err.Error())
		c.observe(fsxml.SectionDirectory, OutcomeError)
		return fsxml.EmptyDirectory(), fmt.Errorf("compile directory: %w", err)
	}
	if !operational(tenant) {
		log.Debug("no operational tenant for domain")
		c.observe(fsxml.SectionDirectory, OutcomeEmpty)
		return fsxml.EmptyDirectory(), nil
	}

	exts, err := c.Store.ListActiveExtensions(ctx, tenant.ID)
	if err != nil {
		log.Error("extension listing failed", "tenant_id", tenant.ID, "error", err.Error())
		c.observe(fsxml.SectionDirectory, OutcomeError)
		return fsxml.EmptyDirectory(), fmt.Errorf("compile directory: %w", err)
	}

	users := make([]fsxml.User, 0, len(exts))
	for _, e := range exts {
		if !e.Active || e.TenantID != tenant.ID {
			continue
		}
		users = append(users, directoryUser(tenant, e))
	}

	dom := fsxml.Domain{
		Name:   tenant.Domain,
		Params: []fsxml.Param{{Name: "dial-string", Value: dialString}},
		Variables: []fsxml.Variable{
			{Name: "tenant_id", Value: tenant.ID},
		},
		Groups: []fsxml.Group{{Name: "default", Users: users}},
	}
	c.observe(fsxml.SectionDirectory, OutcomeUsers)
	return fsxml.Directory(dom), nil
}

func directoryUser(tenant *pbx.Tenant, e pbx.Extension) fsxml.User {
	u := fsxml.User{
		ID:     e.Number,
		Params: []fsxml.Param{{Name: "password", Value: e.Password}},
		Variables: []fsxml.Variable{
			{Name: "user_context", Value: tenant.Domain},
			{Name: "tenant_id", Value: tenant.ID},
		},
	}
	if e.VoicemailEnabled && e.VoicemailPIN != "" {
		u.Params = append(u.Params, fsxml.Param{Name: "vm-password", Value: e.VoicemailPIN})
	}

	for _, v := range []fsxml.Variable{
		{Name: "effective_caller_id_name", Value: e.EffectiveCallerIDName},
		{Name: "effective_caller_id_number", Value: e.EffectiveCallerIDNumber},
		{Name: "outbound_caller_id_name", Value: e.OutboundCallerIDName},
		{Name: "outbound_caller_id_number", Value: e.OutboundCallerIDNumber},
	} {
		if v.Value != "" {
			u.Variables = append(u.Variables, v)
		}
	}
	return u
}

func operational(t *pbx.Tenant) bool {
	return t != nil && t.Active && t.IsOperational()
}
