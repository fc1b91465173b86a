package telephony

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"pbx-control/internal/fsxml"
	"pbx-control/internal/routing"
	"pbx-control/pkg/logger"
)

// DocumentCompiler is the routing engine as seen from the HTTP boundary.
type DocumentCompiler interface {
	CompileDirectory(ctx context.Context, domain string) (*fsxml.Document, error)
	CompileDialplan(ctx context.Context, req routing.DialplanRequest) (*fsxml.Document, error)
}

// LookupObserver records lookup latency per section.
type LookupObserver interface {
	ObserveLookup(section string, d time.Duration)
}

// LookupRequest is the subset of a mod_xml_curl POST we route on.
// The switch sends application/x-www-form-urlencoded bodies.
type LookupRequest struct {
	Section string

	// directory
	TagName  string
	KeyName  string
	KeyValue string
	Domain   string
	User     string
	Purpose  string

	// dialplan
	DestinationNumber string
	CallerIDNumber    string
	CallerContext     string
	VarDomainName     string
	VarSIPReqHost     string
}

func ParseLookupRequest(r *http.Request) (LookupRequest, error) {
	if err := r.ParseForm(); err != nil {
		return LookupRequest{}, err
	}
	v := func(key string) string { return strings.TrimSpace(r.PostFormValue(key)) }

	req := LookupRequest{
		Section:           v("section"),
		TagName:           v("tag_name"),
		KeyName:           v("key_name"),
		KeyValue:          v("key_value"),
		Domain:            v("domain"),
		User:              v("user"),
		Purpose:           v("purpose"),
		DestinationNumber: v("Caller-Destination-Number"),
		CallerIDNumber:    v("Caller-Caller-ID-Number"),
		CallerContext:     v("Caller-Context"),
		VarDomainName:     v("variable_domain_name"),
		VarSIPReqHost:     v("variable_sip_req_host"),
	}
	if req.DestinationNumber == "" {
		req.DestinationNumber = v("Hunt-Destination-Number")
	}
	return req, nil
}

// DirectoryDomain is the domain a directory lookup is for.
func (r LookupRequest) DirectoryDomain() string {
	if r.Domain != "" {
		return r.Domain
	}
	if r.TagName == "domain" && r.KeyName == "name" {
		return r.KeyValue
	}
	return ""
}

// DialplanDomain resolves the tenant domain of a call: the channel's domain,
// then the SIP request host, then the dialplan context (which the directory
// sets to the tenant domain for registered users).
func (r LookupRequest) DialplanDomain() string {
	for _, d := range []string{r.VarDomainName, r.VarSIPReqHost, r.CallerContext} {
		if d != "" {
			return d
		}
	}
	return ""
}

// XMLCurlHandler answers the switch's XML lookups. It always replies 200 with
// a document; compile errors are logged and the safe fallback is served.
type XMLCurlHandler struct {
	Compiler DocumentCompiler
	Observer LookupObserver

	Now func() time.Time
}

func (h XMLCurlHandler) Handle(c *gin.Context) {
	log := logger.FromGin(c)
	if h.Now == nil {
		h.Now = time.Now
	}
	start := h.Now()

	req, err := ParseLookupRequest(c.Request)
	if err != nil {
		log.Warn("xml lookup parse failed", "err", err)
		writeDocument(c, fsxml.NotFound())
		return
	}

	var doc *fsxml.Document
	switch req.Section {
	case fsxml.SectionDirectory:
		if req.Purpose != "" {
			// gateways / network-list enumeration at profile start
			doc = fsxml.NotFound()
			break
		}
		doc, err = h.Compiler.CompileDirectory(c.Request.Context(), req.DirectoryDomain())
	case fsxml.SectionDialplan:
		doc, err = h.Compiler.CompileDialplan(c.Request.Context(), routing.DialplanRequest{
			Domain:      req.DialplanDomain(),
			Destination: req.DestinationNumber,
			Caller:      req.CallerIDNumber,
			Context:     req.CallerContext,
		})
	default:
		log.Debug("unsupported xml section", "section", req.Section)
		doc = fsxml.NotFound()
	}
	if err != nil {
		log.Error("xml lookup compile failed", "section", req.Section, "err", err)
		_ = c.Error(err)
	}
	if doc == nil {
		doc = fsxml.NotFound()
	}

	writeDocument(c, doc)
	if h.Observer != nil && req.Section != "" {
		h.Observer.ObserveLookup(req.Section, h.Now().Sub(start))
	}
}

const xmlContentType = "text/xml; charset=utf-8"

func writeDocument(c *gin.Context, doc *fsxml.Document) {
	body, err := fsxml.Render(doc)
	if err != nil {
		logger.FromGin(c).Error("xml render failed", "err", err)
		body, _ = fsxml.Render(fsxml.NotFound())
	}
	c.Data(http.StatusOK, xmlContentType, body)
}
