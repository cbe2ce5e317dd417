// Package workspace owns the on-disk layout of a task's durable workspace.
//
//	<tasks_dir>/<task_id>/
//	  artifacts/<key>/        media, 16 kHz audio, sub_en.srt, sub_zh.srt
//	  hitl/                   <key>_<step>_{input,output,effective}.json
//	  package/                packaged course tree
//	  output_<step>.json      step execution records
//	  <course_id>.zip         packaged archive
//
// The "output" file of a HITL triple is the operator override. It is never
// written by the pipeline.
package workspace
