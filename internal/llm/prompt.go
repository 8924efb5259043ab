package llm

// DefaultInstruction is the base persona used when BOT_INSTRUCTION is unset.
const DefaultInstruction = "You are a helpful assistant. Whenever users ask you for help you will " +
	"provide them with succinct answers formatted using Markdown. You know the user's name as it is " +
	"provided within the meta data of the messages."

// Persona builds the default system prompt from the bot's name and base instruction.
func Persona(name, instruction string) string {
	if instruction == "" {
		instruction = DefaultInstruction
	}
	return "Your name is " + name + ". " + instruction
}
