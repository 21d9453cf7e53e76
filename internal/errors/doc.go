// Package errors provides coded, formatted diagnostics for the kiln CLI.
//
// Every code maps to a registered template with a category, a short
// message, a longer explanation and sometimes a hint. The K-codes are the
// codes runtime reports carry (see package report), so a report.Error
// converts to a diagnostic with FromReport. P-codes are live protocol
// errors and C-codes configuration errors.
//
// # Usage
//
//	err := errors.New("K080").
//	    WithFile("components/counter.yaml").
//	    Wrap(validateErr)
//
//	errors.PrintError(os.Stderr, err)
//	// Output:
//	// ERROR K080: Invalid component document
//	//
//	//   components/counter.yaml
//	//
//	//   │ action "inc": unknown state "cuont"
//	//
//	//   The document failed validation. Every problem found is listed.
//	//
//	//   Hint: Run 'kiln check' after each edit.
package errors
