package cmd

import (
	"github.com/Iron-Ham/subforge/internal/errors"
	"github.com/Iron-Ham/subforge/internal/provision"
	"github.com/Iron-Ham/subforge/internal/ui"
)

// printReport writes a provisioning report. The fatal error, if any, is
// left for main to print.
func printReport(p *ui.Printer, report *provision.Report) {
	if report == nil {
		return
	}
	for _, step := range report.Completed {
		p.Success("%s", step)
	}
	for _, n := range report.Notices {
		p.Info("%s", n.Error())
	}
	for _, w := range report.Warnings {
		p.Warn("%s", w.Error())
		p.Remediation(errors.RemediationOf(w))
	}

	if report.Repository != nil {
		p.Info("repository: %s", report.Repository.HTMLURL)
	}
	if report.Register != nil && report.Register.Registered {
		p.Info("submodule: %s", report.Register.Path)
	} else if report.RelPath != "" && report.LocalPath != "" && len(report.Warnings) == 0 {
		p.Info("project: %s", report.LocalPath)
	}
}
