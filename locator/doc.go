// Package locator discovers and loads the runtime support library from a
// prioritized pair of candidate directories and pins it for the process
// lifetime. Loading doubles as validation: a file that is not a loadable
// module fails the attempt the same way a missing file does.
package locator
