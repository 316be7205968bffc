// Package validator applies declarative rules to request input and collects
// the failures into ValidationErrors.
//
//	err := validator.Apply(
//	    validator.RequiredString("email", email),
//	    validator.ValidEmail("email", email),
//	    validator.LocalPath("callbackUrl", callbackURL),
//	)
//	if errs := validator.ExtractValidationErrors(err); errs != nil {
//	    // errs.Get("email")
//	}
package validator
