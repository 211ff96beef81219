// Package annotate renders decoder events as logic-analyser style annotations.
//
// Annotations are grouped in rows:
//
//	logic   decoded bit value ("0" or "1")
//	period  bit cell length ("116.0 μs")
//	type    preamble and telegram type (PREAMBLE 17, IDLE, LOCO, FUNC, UNKNOWN, ...)
//	adr     decoded address
//	func    command details (S:10,D:1, FL/F1/, Mod:1,Inductor:0/on, ...)
//
// Each annotation carries its texts from longest to shortest so a display can
// pick the variant that fits. The Annotator also echoes decoded bytes to a raw
// binary writer and reports the average bit frequency.
package annotate
