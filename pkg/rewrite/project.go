package rewrite

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/panbanda/iltransform/pkg/models"
	"go.uber.org/zap"
)

const (
	outputTypeTag        = "<OutputType>Exe</OutputType>"
	compileTag           = "<Compile Include"
	quotedProjectNameIL  = `"$(MSBuildProjectName).il"`
	processIsolationLine = "<RequiresProcessIsolation>true</RequiresProcessIsolation>"
)

// RewriteProject applies the descriptor passes to the lines of a .csproj or
// .ilproj file:
//   - add RequiresProcessIsolation, with a comment naming the reasons, to the
//     first PropertyGroup;
//   - drop <OutputType>Exe</OutputType> once tests carry fact attributes,
//     together with a PropertyGroup left empty;
//   - point <Compile Include> of an IL project at its renamed source.
func (r *Rewriter) RewriteProject(lines []string, p *models.Project, settings Settings) ([]string, bool) {
	out := slices.Clone(lines)
	hasIsolation := p.HasRequiresProcessIsolation
	oldSource := `"` + filepath.Base(p.Source.MainClassSourceFile) + `"`

	for i := 0; i < len(out); i++ {
		line := out[i]

		// Runs before the OutputType removal, which may drop the first PropertyGroup.
		if settings.AddProcessIsolation && p.NeedsProcessIsolation() && !hasIsolation &&
			strings.Contains(line, "<PropertyGroup") {
			model := "  " + line
			if i+1 < len(out) && GetIndent(out[i+1]) > GetIndent(line) {
				model = out[i+1]
			}
			add := []string{
				"<!-- Needed for " + strings.Join(p.RequiresProcessIsolationReasons, ", ") + " -->",
				processIsolationLine,
			}
			out, i = InsertIndented(out, i+1, add, model)
			i--
			hasIsolation = true
			continue
		}

		if settings.AddFactAttributes && strings.Contains(line, outputTypeTag) {
			out = slices.Delete(out, i, i+1)
			i--
			if i >= 0 && i+1 < len(out) &&
				strings.TrimSpace(out[i]) == "<PropertyGroup>" &&
				strings.TrimSpace(out[i+1]) == "</PropertyGroup>" {
				out = slices.Delete(out, i, i+2)
				i--
			}
			continue
		}

		if p.IsIL && p.NewSourceFile != "" && strings.Contains(line, compileTag) {
			matchesProject := stem(p.NewSourceFile) == stem(p.CurrentPath())
			replacement := `"` + filepath.Base(p.NewSourceFile) + `"`
			if matchesProject {
				replacement = quotedProjectNameIL
			}
			replaced := strings.ReplaceAll(line, oldSource, replacement)
			if replaced != line {
				out[i] = replaced
			} else if !matchesProject || !strings.Contains(line, quotedProjectNameIL) {
				r.logger.Warn("unrecognized compile item",
					zap.String("path", p.AbsolutePath),
					zap.String("line", line))
			}
		}
	}

	return out, !slices.Equal(lines, out)
}
