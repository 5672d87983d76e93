// Package submission turns generation form values into submit_sliders
// requests.
//
// Build is pure: it validates the form, applies the melody-mode rules and
// appends advanced values only when the advanced panel is open. The package
// also carries the recommended reset values, parameter hints and the typing
// rules the server applies to each slider.
package submission
