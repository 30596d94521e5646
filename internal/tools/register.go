package tools

import (
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// instrumented wraps a tool handler so every execution is reported to
// the request's recorder, dispatch errors included.
func instrumented[In, Out any](name string, fn func(*ai.ToolContext, In) (Out, error)) func(*ai.ToolContext, In) (Out, error) {
	return func(tctx *ai.ToolContext, input In) (Out, error) {
		start := time.Now()
		out, err := fn(tctx, input)
		if rec, ok := RecorderFromContext(tctx.Context); ok {
			rec.Observe(name, input, out, err, time.Since(start))
		}
		return out, err
	}
}

// Register defines the five task tools on the Genkit instance and
// returns them for generation calls. The catalog is fixed; the model
// can never reach an operation outside it.
func (k *Kit) Register(g *genkit.Genkit) []ai.Tool {
	return []ai.Tool{
		genkit.DefineTool(g, "add_todo",
			"Add a new todo task for the user. "+
				"Use this when the user wants to create, add, or remember a task. "+
				"The description must be 1-500 characters.",
			instrumented("add_todo", k.AddTodo)),

		genkit.DefineTool(g, "list_todos",
			"List the user's todo tasks, newest first, with total, completed, and pending counts. "+
				"Set include_completed to false to show only pending tasks. "+
				"Use this when the user asks what is on their list or how much is done.",
			instrumented("list_todos", k.ListTodos)),

		genkit.DefineTool(g, "complete_todo",
			"Mark a task as completed. "+
				"Identify the task by its UUID in task_id, or by a phrase in description_match that is matched against task descriptions. "+
				"If several tasks match the phrase, the result lists candidates so the user can pick one.",
			instrumented("complete_todo", k.CompleteTodo)),

		genkit.DefineTool(g, "update_todo",
			"Change a task's description to new_description. "+
				"Identify the task by its UUID in task_id, or by a phrase in description_match. "+
				"The result includes the previous description.",
			instrumented("update_todo", k.UpdateTodo)),

		genkit.DefineTool(g, "delete_todo",
			"Delete a task permanently. "+
				"Identify it by its UUID in task_id or by a phrase in description_match. "+
				"Set delete_completed to true to delete all completed tasks at once instead.",
			instrumented("delete_todo", k.DeleteTodo)),
	}
}
