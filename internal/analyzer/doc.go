// Package analyzer turns evidence bytes into an evidence.AnalysisResult.
//
// Configured regions are cropped, preprocessed with imaging and passed to a
// TextRecognizer (the tesseract CLI in production) in declared order until
// one yields "label + digits". A found identifier is then only accepted when
// a reference fragment appears in the profile panel above the similarity
// threshold. Recognizer faults and deadlines are transient; they never cost
// the submitter an attempt.
package analyzer
