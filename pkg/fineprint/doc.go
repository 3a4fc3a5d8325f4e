// Package fineprint classifies legal provisions against a multi-label
// provision-type inventory using a model directory trained by the
// fineprint CLI.
//
// Quick start:
//
//	clf, err := fineprint.Load("models/lr")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer clf.Close()
//
//	res, _ := clf.Classify(ctx, "Each party shall keep the Confidential Information strictly confidential.")
//	fmt.Println(res.Labels) // [confidentiality]
//
// A Classifier is safe for concurrent use. Create once, reuse across
// requests; loading an encoder model initializes the ONNX runtime and is
// the expensive step.
package fineprint
