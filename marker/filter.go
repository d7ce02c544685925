package marker

import (
	"github.com/sirupsen/logrus"

	"github.com/distribution/depctl/model"
)

// NameOf extracts the canonical package name from a raw requirement string
// (spec.md §4.4: "extract the logical package name by first attempting a
// full requirement parse; on failure, split on the first occurrence of
// any of the requirement delimiters and trim").
func NameOf(requirementStr string) string {
	if name := model.ParseRequirement(requirementStr).CanonicalName(); name != "" {
		return name
	}
	return model.CanonicalName(model.ExtractName(requirementStr))
}

// Applies reports whether requirementStr's marker (if any) evaluates true
// against env. A requirement with no marker always applies. A marker this
// grammar cannot parse is logged and treated as applicable (fail open),
// matching should_include_requirement in the reference implementation
// (original_source src/core/marker.rs): a clause this subset can't
// evaluate should not silently drop an otherwise-real dependency.
func Applies(requirementStr string, env Env, log *logrus.Entry) bool {
	req := model.ParseRequirement(requirementStr)
	if req.Marker == "" {
		return true
	}

	groups, err := parseExpr(req.Marker)
	if err != nil {
		log.WithFields(logrus.Fields{"requirement": requirementStr, "error": err}).Warn("could not parse marker, including requirement")
		return true
	}

	ok, err := evaluate(groups, env)
	if err != nil {
		log.WithFields(logrus.Fields{"requirement": requirementStr, "error": err}).Warn("could not evaluate marker, including requirement")
		return true
	}
	return ok
}
